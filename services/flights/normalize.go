package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"travelagent/models"
)

type offersResponse struct {
	Data         []json.RawMessage `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
		Aircraft map[string]string `json:"aircraft"`
	} `json:"dictionaries"`
}

type amount string

func (a amount) float() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(a)), 64)
	if err != nil {
		return 0
	}
	return v
}

type charge struct {
	Amount amount `json:"amount"`
	Code   string `json:"code"`
	Type   string `json:"type"`
}

func sum(charges []charge) float64 {
	var total float64
	for _, c := range charges {
		total += c.Amount.float()
	}
	return total
}

type rawEndpoint struct {
	IATACode string `json:"iataCode"`
	Terminal string `json:"terminal"`
	At       string `json:"at"`
}

type rawSegment struct {
	ID          string      `json:"id"`
	Departure   rawEndpoint `json:"departure"`
	Arrival     rawEndpoint `json:"arrival"`
	CarrierCode string      `json:"carrierCode"`
	Number      string      `json:"number"`
	Aircraft    struct {
		Code string `json:"code"`
	} `json:"aircraft"`
	Operating struct {
		CarrierCode string `json:"carrierCode"`
	} `json:"operating"`
}

type rawOffer struct {
	ID    string `json:"id"`
	Price struct {
		Currency   string   `json:"currency"`
		Total      amount   `json:"total"`
		GrandTotal amount   `json:"grandTotal"`
		Base       amount   `json:"base"`
		Fees       []charge `json:"fees"`
		Taxes      []charge `json:"taxes"`
	} `json:"price"`
	Itineraries []struct {
		Duration string       `json:"duration"`
		Segments []rawSegment `json:"segments"`
	} `json:"itineraries"`
	TravelerPricings []struct {
		Price struct {
			Taxes []charge `json:"taxes"`
		} `json:"price"`
		FareDetailsBySegment []struct {
			SegmentID string `json:"segmentId"`
			Cabin     string `json:"cabin"`
		} `json:"fareDetailsBySegment"`
	} `json:"travelerPricings"`
}

// Local times come back without a zone.
var timeLayouts = []string{"2006-01-02T15:04:05", time.RFC3339, "2006-01-02T15:04"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// normalize turns a flight-offers body into validated offers. Offers that
// fail validation are skipped and logged; a body that is not JSON is an error.
func (e *Engine) normalize(ctx context.Context, body []byte) ([]models.FlightOffer, error) {
	var resp offersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse flight offers: %w", err)
	}

	offers := make([]models.FlightOffer, 0, len(resp.Data))
	for _, raw := range resp.Data {
		var ro rawOffer
		if err := json.Unmarshal(raw, &ro); err != nil {
			e.logger.Warn("skipping unreadable offer", zap.Error(err))
			continue
		}
		offer, err := e.normalizeOffer(ctx, ro, resp.Dictionaries.Carriers, resp.Dictionaries.Aircraft)
		if err != nil {
			e.logger.Warn("skipping invalid offer", zap.String("offer_id", ro.ID), zap.Error(err))
			continue
		}
		offer.Raw = raw
		offers = append(offers, offer)
	}
	return offers, nil
}

func (e *Engine) normalizeOffer(ctx context.Context, ro rawOffer, carriers, aircraft map[string]string) (models.FlightOffer, error) {
	cabins := make(map[string]string)
	for _, tp := range ro.TravelerPricings {
		for _, fd := range tp.FareDetailsBySegment {
			if _, seen := cabins[fd.SegmentID]; !seen {
				cabins[fd.SegmentID] = fd.Cabin
			}
		}
	}

	total := ro.Price.Total.float()
	if total == 0 {
		total = ro.Price.GrandTotal.float()
	}
	taxes := sum(ro.Price.Taxes)
	if taxes == 0 && len(ro.TravelerPricings) > 0 {
		for _, tp := range ro.TravelerPricings {
			taxes += sum(tp.Price.Taxes)
		}
	}
	price := models.Price{
		Total:    total,
		Currency: ro.Price.Currency,
		Base:     ro.Price.Base.float(),
		Taxes:    taxes,
		Fees:     sum(ro.Price.Fees),
	}

	itineraries := make([]models.Itinerary, 0, len(ro.Itineraries))
	for _, it := range ro.Itineraries {
		segments := make([]models.Segment, 0, len(it.Segments))
		for _, rs := range it.Segments {
			operating := rs.Operating.CarrierCode
			if operating == "" {
				operating = rs.CarrierCode
			}
			segments = append(segments, models.Segment{
				Departure: models.Endpoint{
					Airport:  rs.Departure.IATACode,
					Time:     parseTime(rs.Departure.At),
					Terminal: rs.Departure.Terminal,
				},
				Arrival: models.Endpoint{
					Airport:  rs.Arrival.IATACode,
					Time:     parseTime(rs.Arrival.At),
					Terminal: rs.Arrival.Terminal,
				},
				CarrierCode:      rs.CarrierCode,
				CarrierName:      e.names.Airline(ctx, rs.CarrierCode, carriers[rs.CarrierCode]),
				FlightNumber:     rs.CarrierCode + rs.Number,
				AircraftCode:     rs.Aircraft.Code,
				AircraftName:     e.names.Aircraft(ctx, rs.Aircraft.Code, aircraft[rs.Aircraft.Code]),
				OperatingCarrier: operating,
				Cabin:            cabins[rs.ID],
			})
		}
		itinerary, err := models.NewItinerary(it.Duration, segments)
		if err != nil {
			return models.FlightOffer{}, err
		}
		itineraries = append(itineraries, itinerary)
	}

	return models.NewFlightOffer(ro.ID, price, itineraries)
}
