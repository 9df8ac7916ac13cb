package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_JSON(t *testing.T) {
	d := NewDate(2024, time.December, 12)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-12-12"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(d))

	assert.Error(t, json.Unmarshal([]byte(`"12/12/2024"`), &back))
}

func TestParseCabinClass(t *testing.T) {
	tests := []struct {
		in   string
		want CabinClass
		ok   bool
	}{
		{"economy", Economy, true},
		{"Premium Economy", PremiumEconomy, true},
		{"business class", Business, true},
		{"FIRST", First, true},
		{"coach", Economy, true},
		{"steerage", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCabinClass(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTripQuery_MissingFields(t *testing.T) {
	q := NewTripQuery()
	assert.Equal(t, []string{"origin", "destination", "depart_date"}, q.MissingFields())

	d := NewDate(2030, time.January, 1)
	q.OriginName, q.DestinationName, q.DepartDate = "Paris", "Rome", &d
	q.TripType = RoundTrip
	assert.Equal(t, []string{"return_date"}, q.MissingFields())
}

func TestTripQuery_MissingHotelDates(t *testing.T) {
	d := NewDate(2030, time.January, 1)
	q := NewTripQuery()
	q.OriginName, q.DestinationName, q.DepartDate = "Paris", "Rome", &d
	q.HotelRequested = true
	q.HotelCheckIn = &d
	assert.Equal(t, []string{"hotel_check_out"}, q.MissingFields())

	out := NewDate(2030, time.January, 5)
	q.HotelCheckOut = &out
	assert.Empty(t, q.MissingFields())

	q.HotelRequested = false
	q.HotelCheckIn, q.HotelCheckOut = nil, nil
	assert.Empty(t, q.MissingFields())
}

func TestPriceBand(t *testing.T) {
	band := PriceBand{Min: Float(200), Max: Float(500)}
	assert.True(t, band.Active())
	assert.True(t, band.Contains(200))
	assert.True(t, band.Contains(500))
	assert.False(t, band.Contains(199.99))
	assert.False(t, band.Contains(500.01))

	open := PriceBand{Max: Float(300)}
	assert.True(t, open.Contains(0))
	assert.False(t, PriceBand{}.Active())
	assert.Equal(t, "any - 300.00", open.String())
}

func TestNewItinerary_RejectsOutOfOrderSegments(t *testing.T) {
	t0 := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	first := Segment{Departure: Endpoint{Airport: "ATL", Time: t0}}
	second := Segment{Departure: Endpoint{Airport: "DFW", Time: t0.Add(-time.Hour)}}

	_, err := NewItinerary("PT3H", []Segment{first, second})
	assert.Error(t, err)

	_, err = NewItinerary("PT3H", nil)
	assert.Error(t, err)

	it, err := NewItinerary("PT3H", []Segment{second, first})
	require.NoError(t, err)
	assert.Len(t, it.Segments, 2)
}

func TestNewFlightOffer_Validation(t *testing.T) {
	it := Itinerary{Segments: []Segment{{}}}

	_, err := NewFlightOffer("", Price{Total: 10}, []Itinerary{it})
	assert.Error(t, err)
	_, err = NewFlightOffer("1", Price{Total: -1}, []Itinerary{it})
	assert.Error(t, err)
	_, err = NewFlightOffer("1", Price{Total: 10}, nil)
	assert.Error(t, err)

	offer, err := NewFlightOffer("1", Price{Total: 10, Currency: "USD"}, []Itinerary{it})
	require.NoError(t, err)
	assert.Equal(t, 10.0, offer.TotalPrice())
}
