package models

// SearchStatus discriminates every result the core hands back.
type SearchStatus string

const (
	StatusSuccess SearchStatus = "success"
	StatusPartial SearchStatus = "partial"
	StatusError   SearchStatus = "error"
)

// ErrorKind classifies a failed operation for the transport shell.
type ErrorKind string

const (
	KindInput      ErrorKind = "input_error"
	KindNotFound   ErrorKind = "resolution_not_found"
	KindAuth       ErrorKind = "auth_error"
	KindRateLimit  ErrorKind = "rate_limited"
	KindUpstream   ErrorKind = "upstream_error"
	KindUnexpected ErrorKind = "unexpected"
)

type FlightSearchResult struct {
	Status  SearchStatus
	Offers  []FlightOffer
	Kind    ErrorKind
	Message string
}

func FlightSuccess(offers []FlightOffer) FlightSearchResult {
	return FlightSearchResult{Status: StatusSuccess, Offers: offers}
}

func FlightFailure(kind ErrorKind, msg string) FlightSearchResult {
	return FlightSearchResult{Status: StatusError, Kind: kind, Message: msg}
}

func (r FlightSearchResult) OK() bool {
	return r.Status == StatusSuccess
}

type HotelSearchResult struct {
	Status  SearchStatus
	Offers  []HotelOffer
	Kind    ErrorKind
	Message string
}

func HotelSuccess(offers []HotelOffer) HotelSearchResult {
	return HotelSearchResult{Status: StatusSuccess, Offers: offers}
}

func HotelFailure(kind ErrorKind, msg string) HotelSearchResult {
	return HotelSearchResult{Status: StatusError, Kind: kind, Message: msg}
}

func (r HotelSearchResult) OK() bool {
	return r.Status == StatusSuccess
}

// Leg names used in TripResponse errors and offer references.
const (
	LegDeparture = "departure"
	LegReturn    = "return"
	LegHotels    = "hotels"
)

type LegError struct {
	Leg     string    `json:"leg"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// TripResponse is the outcome of one trip request. Status is "error" only
// when nothing usable came back; a failed return leg or hotel search next to
// a successful departure leg yields "partial".
type TripResponse struct {
	Status           SearchStatus  `json:"status"`
	SearchID         string        `json:"search_id,omitempty"`
	Query            *TripQuery    `json:"query,omitempty"`
	DepartureFlights []FlightOffer `json:"departure_flights"`
	ReturnFlights    []FlightOffer `json:"return_flights,omitempty"`
	Hotels           []HotelOffer  `json:"hotels,omitempty"`
	Notices          []string      `json:"notices,omitempty"`
	Errors           []LegError    `json:"errors"`
	Kind             ErrorKind     `json:"kind,omitempty"`
	Message          string        `json:"message,omitempty"`
}

// Fail builds an error response carrying a single top-level failure.
func Fail(kind ErrorKind, msg string) TripResponse {
	return TripResponse{
		Status:           StatusError,
		Kind:             kind,
		Message:          msg,
		DepartureFlights: []FlightOffer{},
		Errors:           []LegError{},
	}
}
