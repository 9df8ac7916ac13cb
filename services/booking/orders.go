package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"travelagent/models"
	"travelagent/services/inventory"
)

// Error is a classified flight-order failure.
type Error struct {
	Kind    models.ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// KindOf reports the classification of err, KindUnexpected if it has none.
func KindOf(err error) models.ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return models.KindUnexpected
}

// Order is a created flight order.
type Order struct {
	ID        string
	Reference string
	Raw       json.RawMessage
}

// Orders talks to the flight-order endpoints. A rejected credential is
// refreshed once per call.
type Orders struct {
	session *inventory.Session
}

func NewOrders(session *inventory.Session) *Orders {
	return &Orders{session: session}
}

type name struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type phone struct {
	DeviceType         string `json:"deviceType"`
	CountryCallingCode string `json:"countryCallingCode"`
	Number             string `json:"number"`
}

type document struct {
	DocumentType    string `json:"documentType"`
	BirthPlace      string `json:"birthPlace,omitempty"`
	Number          string `json:"number"`
	ExpiryDate      string `json:"expiryDate,omitempty"`
	IssuanceCountry string `json:"issuanceCountry,omitempty"`
	ValidityCountry string `json:"validityCountry,omitempty"`
	Nationality     string `json:"nationality,omitempty"`
	Holder          bool   `json:"holder"`
}

type orderTraveler struct {
	ID          string `json:"id"`
	DateOfBirth string `json:"dateOfBirth"`
	Name        name   `json:"name"`
	Gender      string `json:"gender"`
	Contact     struct {
		EmailAddress string  `json:"emailAddress,omitempty"`
		Phones       []phone `json:"phones,omitempty"`
	} `json:"contact"`
	Documents []document `json:"documents,omitempty"`
}

type orderContact struct {
	AddresseeName name    `json:"addresseeName"`
	CompanyName   string  `json:"companyName,omitempty"`
	Purpose       string  `json:"purpose"`
	Phones        []phone `json:"phones,omitempty"`
	EmailAddress  string  `json:"emailAddress"`
	Address       struct {
		Lines       []string `json:"lines,omitempty"`
		PostalCode  string   `json:"postalCode,omitempty"`
		CityName    string   `json:"cityName,omitempty"`
		CountryCode string   `json:"countryCode,omitempty"`
	} `json:"address"`
}

type remark struct {
	SubType string `json:"subType"`
	Text    string `json:"text"`
}

type orderRequest struct {
	Data struct {
		Type         string            `json:"type"`
		FlightOffers []json.RawMessage `json:"flightOffers"`
		Travelers    []orderTraveler   `json:"travelers"`
		Remarks      struct {
			General []remark `json:"general"`
		} `json:"remarks"`
		TicketingAgreement struct {
			Option string `json:"option"`
			Delay  string `json:"delay"`
		} `json:"ticketingAgreement"`
		Contacts []orderContact `json:"contacts"`
	} `json:"data"`
}

func phones(number, callingCode string) []phone {
	if number == "" {
		return nil
	}
	if callingCode == "" {
		callingCode = "1"
	}
	return []phone{{DeviceType: "MOBILE", CountryCallingCode: callingCode, Number: number}}
}

// buildOrder numbers travelers 1..n unless they carry an ID, matching the
// traveler IDs of the priced offer.
func buildOrder(offer json.RawMessage, travelers []models.Traveler, contact models.Contact) orderRequest {
	var req orderRequest
	req.Data.Type = "flight-order"
	req.Data.FlightOffers = []json.RawMessage{offer}
	req.Data.Remarks.General = []remark{{SubType: "GENERAL_MISCELLANEOUS", Text: "Booking created via travel agent"}}
	req.Data.TicketingAgreement.Option = "DELAY_TO_CANCEL"
	req.Data.TicketingAgreement.Delay = "6D"

	for i, t := range travelers {
		ot := orderTraveler{
			ID:          t.ID,
			DateOfBirth: t.DateOfBirth,
			Name:        name{FirstName: strings.ToUpper(t.FirstName), LastName: strings.ToUpper(t.LastName)},
			Gender:      strings.ToUpper(t.Gender),
		}
		if ot.ID == "" {
			ot.ID = strconv.Itoa(i + 1)
		}
		if ot.Gender == "" {
			ot.Gender = "UNSPECIFIED"
		}
		ot.Contact.EmailAddress = t.Email
		ot.Contact.Phones = phones(t.Phone, t.CountryCallingCode)
		if t.PassportNumber != "" {
			ot.Documents = []document{{
				DocumentType:    "PASSPORT",
				BirthPlace:      t.BirthPlace,
				Number:          t.PassportNumber,
				ExpiryDate:      t.PassportExpiry,
				IssuanceCountry: t.IssuanceCountry,
				ValidityCountry: t.IssuanceCountry,
				Nationality:     t.Nationality,
				Holder:          true,
			}}
		}
		req.Data.Travelers = append(req.Data.Travelers, ot)
	}

	c := orderContact{
		AddresseeName: name{FirstName: contact.FirstName, LastName: contact.LastName},
		CompanyName:   contact.CompanyName,
		Purpose:       "STANDARD",
		Phones:        phones(contact.Phone, contact.CountryCallingCode),
		EmailAddress:  contact.Email,
	}
	c.Address.Lines = contact.AddressLines
	c.Address.PostalCode = contact.PostalCode
	c.Address.CityName = contact.City
	c.Address.CountryCode = contact.CountryCode
	req.Data.Contacts = []orderContact{c}
	return req
}

// Create places a flight order for a priced upstream offer.
func (o *Orders) Create(ctx context.Context, offer json.RawMessage, travelers []models.Traveler, contact models.Contact) (Order, error) {
	resp, err := o.call(ctx, inventory.Request{
		Method: http.MethodPost,
		Path:   inventory.FlightOrdersPath,
		Body:   buildOrder(offer, travelers, contact),
	}, http.StatusCreated)
	if err != nil {
		return Order{}, err
	}

	var body struct {
		Data struct {
			ID                string `json:"id"`
			BookingReference  string `json:"bookingReference"`
			AssociatedRecords []struct {
				Reference string `json:"reference"`
			} `json:"associatedRecords"`
		} `json:"data"`
	}
	if err := resp.Decode(&body); err != nil {
		return Order{}, &Error{Kind: models.KindUpstream, Message: err.Error()}
	}
	order := Order{ID: body.Data.ID, Reference: body.Data.BookingReference, Raw: resp.Body}
	if order.Reference == "" && len(body.Data.AssociatedRecords) > 0 {
		order.Reference = body.Data.AssociatedRecords[0].Reference
	}
	if order.ID == "" {
		return Order{}, &Error{Kind: models.KindUpstream, Message: "flight order response carried no order id"}
	}
	return order, nil
}

// Get returns the upstream view of an order.
func (o *Orders) Get(ctx context.Context, orderID string) (map[string]any, error) {
	resp, err := o.call(ctx, inventory.Request{
		Method: http.MethodGet,
		Path:   inventory.FlightOrdersPath + "/" + url.PathEscape(orderID),
	}, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := resp.Decode(&body); err != nil {
		return nil, &Error{Kind: models.KindUpstream, Message: err.Error()}
	}
	return body, nil
}

func (o *Orders) Cancel(ctx context.Context, orderID string) error {
	_, err := o.call(ctx, inventory.Request{
		Method: http.MethodDelete,
		Path:   inventory.FlightOrdersPath + "/" + url.PathEscape(orderID),
	}, http.StatusNoContent)
	return err
}

func (o *Orders) call(ctx context.Context, r inventory.Request, want int) (*inventory.Response, error) {
	resp, err := o.session.DoWithReauth(ctx, r)
	if err != nil {
		switch {
		case inventory.IsAuthError(err):
			return nil, &Error{Kind: models.KindAuth, Message: err.Error()}
		case errors.Is(err, context.DeadlineExceeded):
			return nil, &Error{Kind: models.KindUpstream, Message: "Request timed out. Please try again."}
		default:
			return nil, &Error{Kind: models.KindUpstream, Message: "Request failed: " + err.Error()}
		}
	}
	if resp.StatusCode == want {
		return resp, nil
	}

	detail := "Unknown error occurred"
	var se *inventory.StatusError
	if errors.As(resp.Err(), &se) && se.Detail != "" {
		detail = se.Detail
	}
	kind := models.KindUpstream
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		kind = models.KindAuth
	case http.StatusTooManyRequests:
		kind = models.KindRateLimit
	case http.StatusNotFound:
		kind = models.KindNotFound
	}
	return nil, &Error{Kind: kind, Message: detail}
}
