package prompt

import (
	"context"
	"time"

	"travelagent/models"
)

// RuleExtractor reads a TripQuery out of text with patterns only. It makes
// no network calls and never fails.
type RuleExtractor struct {
	Dates DateStrategy
}

func (r RuleExtractor) Extract(_ context.Context, text string, now time.Time) (models.TripQuery, error) {
	return r.extract(text, models.DateOf(now)), nil
}

func (r RuleExtractor) extract(text string, today models.Date) models.TripQuery {
	q := models.NewTripQuery()

	q.OriginName, q.DestinationName = assignPlaces(extractPlaces(text))

	var dates []models.Date
	if r.Dates == DatesToken {
		dates = tokenDates(text, today)
	} else {
		dates = patternDates(text, today)
	}
	if len(dates) >= 1 {
		d := dates[0]
		q.DepartDate = &d
	}
	if len(dates) >= 2 {
		d := dates[1]
		q.ReturnDate = &d
		q.TripType = models.RoundTrip
	}

	q.PriceMin, q.PriceMax = extractPriceRange(text)

	if cabin, ok := extractCabin(text); ok {
		q.CabinClass = cabin
	}
	if n, ok := extractPassengers(text); ok {
		q.PassengerCount = n
	}
	if wantsHotel(text) {
		q.HotelRequested = true
		fillHotelDates(&q)
	}
	return q
}

// fillHotelDates defaults the stay to the flight dates.
func fillHotelDates(q *models.TripQuery) {
	if q.HotelCheckIn == nil && q.DepartDate != nil {
		d := *q.DepartDate
		q.HotelCheckIn = &d
	}
	if q.HotelCheckOut == nil && q.ReturnDate != nil {
		d := *q.ReturnDate
		q.HotelCheckOut = &d
	}
}
