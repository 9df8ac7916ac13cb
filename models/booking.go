package models

import "time"

type Traveler struct {
	ID                 string `json:"id,omitempty"`
	FirstName          string `json:"first_name" binding:"required"`
	LastName           string `json:"last_name" binding:"required"`
	DateOfBirth        string `json:"date_of_birth" binding:"required"`
	Gender             string `json:"gender,omitempty"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	CountryCallingCode string `json:"country_calling_code,omitempty"`
	Nationality        string `json:"nationality,omitempty"`
	PassportNumber     string `json:"passport_number,omitempty"`
	PassportExpiry     string `json:"passport_expiry,omitempty"`
	IssuanceCountry    string `json:"issuance_country,omitempty"`
	BirthPlace         string `json:"birth_place,omitempty"`
	SpecialRequests    string `json:"special_requests,omitempty"`
}

type Contact struct {
	FirstName          string   `json:"first_name" binding:"required"`
	LastName           string   `json:"last_name" binding:"required"`
	CompanyName        string   `json:"company_name,omitempty"`
	Email              string   `json:"email" binding:"required,email"`
	Phone              string   `json:"phone,omitempty"`
	CountryCallingCode string   `json:"country_calling_code,omitempty"`
	AddressLines       []string `json:"address_lines,omitempty"`
	PostalCode         string   `json:"postal_code,omitempty"`
	City               string   `json:"city,omitempty"`
	CountryCode        string   `json:"country_code,omitempty"`
}

// Booking statuses stored with a record.
const (
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// BookingRecord is the persisted side of a confirmed flight order.
type BookingRecord struct {
	ID               string      `json:"booking_id"`
	UserID           string      `json:"user_id,omitempty"`
	OrderID          string      `json:"order_id"`
	BookingReference string      `json:"booking_reference"`
	Status           string      `json:"status"`
	PaymentStatus    string      `json:"payment_status"`
	TotalPrice       float64     `json:"total_price"`
	Currency         string      `json:"currency"`
	Offer            FlightOffer `json:"offer"`
	Passengers       []Traveler  `json:"passengers"`
	CreatedAt        time.Time   `json:"created_at"`
}

// BookingResult is the discriminated outcome of create/status/cancel calls.
type BookingResult struct {
	Status           SearchStatus   `json:"status"`
	BookingID        string         `json:"booking_id,omitempty"`
	OrderID          string         `json:"order_id,omitempty"`
	BookingReference string         `json:"booking_reference,omitempty"`
	OrderStatus      map[string]any `json:"order,omitempty"`
	Record           *BookingRecord `json:"record,omitempty"`
	Kind             ErrorKind      `json:"kind,omitempty"`
	Message          string         `json:"message,omitempty"`
}

func BookingFailure(kind ErrorKind, msg string) BookingResult {
	return BookingResult{Status: StatusError, Kind: kind, Message: msg}
}
