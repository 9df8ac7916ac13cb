package inventory

// Endpoint paths on the inventory API, relative to the configured base URL.
const (
	TokenPath        = "/v1/security/oauth2/token"
	LocationsPath    = "/v1/reference-data/locations"
	HotelsByCityPath = "/v1/reference-data/locations/hotels/by-city"
	FlightOffersPath = "/v2/shopping/flight-offers"
	HotelOffersPath  = "/v3/shopping/hotel-offers"
	AirlinesPath     = "/v1/reference-data/airlines"
	AircraftPath     = "/v1/reference-data/aircraft"
	FlightOrdersPath = "/v1/booking/flight-orders"
)

const (
	ProductionBaseURL = "https://api.amadeus.com"
	TestBaseURL       = "https://test.api.amadeus.com"
)
