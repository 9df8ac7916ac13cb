package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Price struct {
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
	Base     float64 `json:"base"`
	Taxes    float64 `json:"taxes"`
	Fees     float64 `json:"fees"`
}

type Endpoint struct {
	Airport  string    `json:"airport"`
	Time     time.Time `json:"time"`
	Terminal string    `json:"terminal,omitempty"`
}

type Segment struct {
	Departure        Endpoint `json:"departure"`
	Arrival          Endpoint `json:"arrival"`
	CarrierCode      string   `json:"carrier_code"`
	CarrierName      string   `json:"carrier_name"`
	FlightNumber     string   `json:"flight_number"`
	AircraftCode     string   `json:"aircraft_code,omitempty"`
	AircraftName     string   `json:"aircraft_name,omitempty"`
	OperatingCarrier string   `json:"operating_carrier,omitempty"`
	Cabin            string   `json:"cabin,omitempty"`
}

type Itinerary struct {
	Duration string    `json:"duration"`
	Segments []Segment `json:"segments"`
}

// NewItinerary rejects segment lists that are empty or not in chronological order.
func NewItinerary(duration string, segments []Segment) (Itinerary, error) {
	if len(segments) == 0 {
		return Itinerary{}, errors.New("itinerary has no segments")
	}
	for i := 1; i < len(segments); i++ {
		if segments[i].Departure.Time.Before(segments[i-1].Departure.Time) {
			return Itinerary{}, fmt.Errorf("segment %d departs before segment %d", i+1, i)
		}
	}
	return Itinerary{Duration: duration, Segments: segments}, nil
}

type FlightOffer struct {
	OfferID     string      `json:"offer_id"`
	Price       Price       `json:"price"`
	Itineraries []Itinerary `json:"itineraries"`

	// Raw is the upstream offer as received; booking needs it verbatim.
	Raw json.RawMessage `json:"-"`
}

// NewFlightOffer validates the required fields of a normalized offer.
func NewFlightOffer(id string, price Price, itineraries []Itinerary) (FlightOffer, error) {
	if id == "" {
		return FlightOffer{}, errors.New("offer id is required")
	}
	if price.Total < 0 || price.Base < 0 || price.Taxes < 0 || price.Fees < 0 {
		return FlightOffer{}, fmt.Errorf("offer %s has a negative price component", id)
	}
	if len(itineraries) == 0 {
		return FlightOffer{}, fmt.Errorf("offer %s has no itineraries", id)
	}
	return FlightOffer{OfferID: id, Price: price, Itineraries: itineraries}, nil
}

func (o FlightOffer) TotalPrice() float64 {
	return o.Price.Total
}

// Segments flattens all itineraries, in order.
func (o FlightOffer) Segments() []Segment {
	var out []Segment
	for _, it := range o.Itineraries {
		out = append(out, it.Segments...)
	}
	return out
}

type HotelPrice struct {
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

type HotelOffer struct {
	HotelID   string     `json:"hotel_id,omitempty"`
	HotelName string     `json:"hotel_name"`
	Price     HotelPrice `json:"price"`
	CheckIn   string     `json:"check_in"`
	CheckOut  string     `json:"check_out"`
	Location  string     `json:"location,omitempty"`
}

func NewHotelOffer(id, name string, price HotelPrice, checkIn, checkOut string) (HotelOffer, error) {
	if name == "" {
		return HotelOffer{}, errors.New("hotel name is required")
	}
	if price.Total < 0 {
		return HotelOffer{}, fmt.Errorf("hotel %s has a negative price", name)
	}
	return HotelOffer{
		HotelID:   id,
		HotelName: name,
		Price:     price,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
	}, nil
}

func (h HotelOffer) TotalPrice() float64 {
	return h.Price.Total
}
