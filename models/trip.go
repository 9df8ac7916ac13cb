package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used on the wire and by the inventory API.
const DateLayout = "2006-01-02"

// Date is a calendar date (UTC midnight) that marshals as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type TripType string

const (
	OneWay    TripType = "one-way"
	RoundTrip TripType = "round-trip"
)

// CabinClass uses the inventory API's travel class names.
type CabinClass string

const (
	Economy        CabinClass = "ECONOMY"
	PremiumEconomy CabinClass = "PREMIUM_ECONOMY"
	Business       CabinClass = "BUSINESS"
	First          CabinClass = "FIRST"
)

// ParseCabinClass accepts the API names and the everyday spellings
// ("premium economy", "business class", "first").
func ParseCabinClass(s string) (CabinClass, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.TrimSuffix(norm, " CLASS")
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	switch CabinClass(norm) {
	case Economy, PremiumEconomy, Business, First:
		return CabinClass(norm), true
	case "COACH":
		return Economy, true
	}
	return "", false
}

// TripQuery is the structured intent extracted from a prompt. Absent values
// are nil/empty; Issues records every value that was rejected during validation.
type TripQuery struct {
	OriginName      string     `json:"origin,omitempty"`
	DestinationName string     `json:"destination,omitempty"`
	DepartDate      *Date      `json:"depart_date,omitempty"`
	ReturnDate      *Date      `json:"return_date,omitempty"`
	TripType        TripType   `json:"trip_type"`
	PriceMin        *float64   `json:"price_min,omitempty"`
	PriceMax        *float64   `json:"price_max,omitempty"`
	CabinClass      CabinClass `json:"cabin_class"`
	PassengerCount  int        `json:"passenger_count"`
	HotelRequested  bool       `json:"hotel_requested"`
	HotelCheckIn    *Date      `json:"hotel_check_in,omitempty"`
	HotelCheckOut   *Date      `json:"hotel_check_out,omitempty"`
	Issues          []string   `json:"issues,omitempty"`
}

// NewTripQuery returns a query carrying the defaults: one-way, economy, one passenger.
func NewTripQuery() TripQuery {
	return TripQuery{
		TripType:       OneWay,
		CabinClass:     Economy,
		PassengerCount: 1,
	}
}

// Incomplete reports whether validation rejected any extracted value.
func (q TripQuery) Incomplete() bool {
	return len(q.Issues) > 0
}

// MissingFields names the fields the search cannot proceed without. A
// requested hotel needs both of its dates.
func (q TripQuery) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(q.OriginName) == "" {
		missing = append(missing, "origin")
	}
	if strings.TrimSpace(q.DestinationName) == "" {
		missing = append(missing, "destination")
	}
	if q.DepartDate == nil {
		missing = append(missing, "depart_date")
	}
	if q.TripType == RoundTrip && q.ReturnDate == nil {
		missing = append(missing, "return_date")
	}
	if q.HotelRequested {
		if q.HotelCheckIn == nil {
			missing = append(missing, "hotel_check_in")
		}
		if q.HotelCheckOut == nil {
			missing = append(missing, "hotel_check_out")
		}
	}
	return missing
}

func (q TripQuery) PriceBand() PriceBand {
	return PriceBand{Min: q.PriceMin, Max: q.PriceMax}
}

// PriceBand is an inclusive [Min, Max] filter; either bound may be open.
type PriceBand struct {
	Min *float64
	Max *float64
}

func (b PriceBand) Active() bool {
	return b.Min != nil || b.Max != nil
}

func (b PriceBand) Contains(price float64) bool {
	if b.Min != nil && price < *b.Min {
		return false
	}
	if b.Max != nil && price > *b.Max {
		return false
	}
	return true
}

func (b PriceBand) String() string {
	format := func(v *float64) string {
		if v == nil {
			return "any"
		}
		return fmt.Sprintf("%.2f", *v)
	}
	return format(b.Min) + " - " + format(b.Max)
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
