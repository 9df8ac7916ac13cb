package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"travelagent/models"
)

// modelFields is the JSON contract asked of language-model extractors.
type modelFields struct {
	Origin         string   `json:"origin"`
	Destination    string   `json:"destination"`
	DepartDate     string   `json:"depart_date"`
	ReturnDate     string   `json:"return_date"`
	PriceMin       *float64 `json:"price_min"`
	PriceMax       *float64 `json:"price_max"`
	CabinClass     string   `json:"cabin_class"`
	Passengers     int      `json:"passengers"`
	HotelRequested bool     `json:"hotel_requested"`
	HotelCheckIn   string   `json:"hotel_check_in"`
	HotelCheckOut  string   `json:"hotel_check_out"`
}

func instruction(text string, today time.Time) string {
	return fmt.Sprintf(`Extract the trip request below as a single JSON object with exactly these keys:
origin, destination (city names as written by the user, or ""),
depart_date, return_date, hotel_check_in, hotel_check_out (YYYY-MM-DD, or ""),
price_min, price_max (numbers, or null), cabin_class (ECONOMY, PREMIUM_ECONOMY, BUSINESS or FIRST),
passengers (integer), hotel_requested (boolean).
Today is %s. Do not guess values the user did not give. Reply with JSON only.

Request: %s`, today.Format(models.DateLayout), text)
}

var errNoJSON = errors.New("model reply contained no JSON object")

// parseModelReply pulls the outermost JSON object out of a model reply and
// maps it onto a TripQuery. Unparseable dates are dropped.
func parseModelReply(reply string) (models.TripQuery, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return models.TripQuery{}, errNoJSON
	}
	var f modelFields
	if err := json.Unmarshal([]byte(reply[start:end+1]), &f); err != nil {
		return models.TripQuery{}, fmt.Errorf("failed to parse model reply: %w", err)
	}

	q := models.NewTripQuery()
	q.OriginName = strings.TrimSpace(f.Origin)
	q.DestinationName = strings.TrimSpace(f.Destination)
	q.DepartDate = optionalDate(f.DepartDate)
	q.ReturnDate = optionalDate(f.ReturnDate)
	if q.ReturnDate != nil {
		q.TripType = models.RoundTrip
	}
	q.PriceMin, q.PriceMax = f.PriceMin, f.PriceMax
	if q.PriceMin != nil && q.PriceMax != nil && *q.PriceMin > *q.PriceMax {
		q.PriceMin, q.PriceMax = q.PriceMax, q.PriceMin
	}
	if cabin, ok := models.ParseCabinClass(f.CabinClass); ok {
		q.CabinClass = cabin
	}
	if f.Passengers > 0 {
		q.PassengerCount = f.Passengers
	}
	q.HotelRequested = f.HotelRequested
	q.HotelCheckIn = optionalDate(f.HotelCheckIn)
	q.HotelCheckOut = optionalDate(f.HotelCheckOut)
	if q.HotelRequested {
		fillHotelDates(&q)
	}
	return q, nil
}

func optionalDate(s string) *models.Date {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}
