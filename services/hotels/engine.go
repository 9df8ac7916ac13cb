package hotels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"travelagent/models"
	"travelagent/services/cache"
	"travelagent/services/inventory"
)

type Params struct {
	// Destination is an airport or city code.
	Destination string
	CheckIn     *models.Date
	CheckOut    *models.Date
	Adults      int
}

// Engine finds hotel offers near an airport: airport to city code, city to
// candidate hotel IDs, then one batched availability query.
type Engine struct {
	session       *inventory.Session
	cities        *cache.Cache[string]
	maxCandidates int
	attempts      int
	delay         time.Duration
	currency      string
	logger        *zap.Logger
}

type Option func(*Engine)

func WithMaxCandidates(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxCandidates = n
		}
	}
}

// WithRetry sets the whole-operation retry budget and the fixed delay
// between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(e *Engine) {
		if attempts > 0 {
			e.attempts = attempts
		}
		e.delay = delay
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(session *inventory.Session, opts ...Option) *Engine {
	e := &Engine{
		session:       session,
		cities:        cache.New[string](nil),
		maxCandidates: 50,
		attempts:      3,
		delay:         2 * time.Second,
		currency:      "USD",
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("hotels")
	return e
}

// stageError carries a finished failure. Retryable failures are attempted
// again from the first stage.
type stageError struct {
	kind      models.ErrorKind
	msg       string
	retryable bool
}

func (e *stageError) Error() string { return e.msg }

func (p Params) validate() error {
	var missing []string
	if strings.TrimSpace(p.Destination) == "" {
		missing = append(missing, "destination")
	}
	if p.CheckIn == nil || p.CheckIn.IsZero() {
		missing = append(missing, "check-in date")
	}
	if p.CheckOut == nil || p.CheckOut.IsZero() {
		missing = append(missing, "check-out date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required hotel search field(s): %s", strings.Join(missing, ", "))
	}
	if !p.CheckOut.After(*p.CheckIn) {
		return fmt.Errorf("check-out %s must be after check-in %s", p.CheckOut, p.CheckIn)
	}
	return nil
}

// Search never returns an empty success: each stage that comes back empty
// has its own error message.
func (e *Engine) Search(ctx context.Context, p Params) models.HotelSearchResult {
	if err := p.validate(); err != nil {
		return models.HotelFailure(models.KindInput, err.Error())
	}
	if p.Adults < 1 {
		p.Adults = 1
	}
	p.Destination = strings.ToUpper(strings.TrimSpace(p.Destination))

	var (
		offers []models.HotelOffer
		err    error
	)
	for attempt := 1; attempt <= e.attempts; attempt++ {
		offers, err = e.search(ctx, p)
		var se *stageError
		if err == nil || !errors.As(err, &se) || !se.retryable || attempt == e.attempts {
			break
		}
		e.logger.Warn("hotel search failed, retrying whole operation",
			zap.String("destination", p.Destination),
			zap.Int("attempt", attempt),
			zap.Duration("delay", e.delay),
			zap.Error(err))
		if inventory.Sleep(ctx, e.delay) != nil {
			err = &stageError{kind: models.KindUpstream, msg: "hotel search cancelled: " + ctx.Err().Error()}
			break
		}
	}

	if err != nil {
		var se *stageError
		if errors.As(err, &se) {
			return models.HotelFailure(se.kind, se.msg)
		}
		return models.HotelFailure(models.KindUnexpected, err.Error())
	}
	e.logger.Info("hotel search complete", zap.String("destination", p.Destination), zap.Int("offers", len(offers)))
	return models.HotelSuccess(offers)
}

func (e *Engine) search(ctx context.Context, p Params) ([]models.HotelOffer, error) {
	city, err := e.CityCode(ctx, p.Destination)
	if err != nil {
		return nil, err
	}
	ids, err := e.hotelIDs(ctx, city)
	if err != nil {
		return nil, err
	}
	return e.offers(ctx, city, ids, p)
}

// CityCode maps an airport code to the city code hotel listings are keyed
// by. A code that is already a city resolves to itself.
func (e *Engine) CityCode(ctx context.Context, airport string) (string, error) {
	airport = strings.ToUpper(strings.TrimSpace(airport))
	if city, ok := knownCities[airport]; ok {
		return city, nil
	}
	if city, ok := e.cities.Get(airport); ok {
		return city, nil
	}

	var body struct {
		Data []struct {
			SubType  string `json:"subType"`
			IATACode string `json:"iataCode"`
			Address  struct {
				CityCode string `json:"cityCode"`
			} `json:"address"`
		} `json:"data"`
	}
	q := url.Values{"subType": {"AIRPORT,CITY"}, "keyword": {airport}}
	if err := e.get(ctx, inventory.LocationsPath, q, &body); err != nil {
		return "", err
	}

	city := ""
	for _, loc := range body.Data {
		if !strings.EqualFold(loc.IATACode, airport) {
			continue
		}
		if strings.EqualFold(loc.SubType, "CITY") {
			city = loc.IATACode
			break
		}
		if loc.Address.CityCode != "" {
			city = loc.Address.CityCode
			break
		}
	}
	if city == "" {
		return "", &stageError{kind: models.KindNotFound, msg: "Could not find city code for airport " + airport}
	}
	city = strings.ToUpper(city)
	e.cities.Set(airport, city, 0)
	return city, nil
}

func (e *Engine) hotelIDs(ctx context.Context, city string) ([]string, error) {
	var body struct {
		Data []struct {
			HotelID string `json:"hotelId"`
		} `json:"data"`
	}
	q := url.Values{
		"cityCode":    {city},
		"radius":      {"5"},
		"radiusUnit":  {"KM"},
		"hotelSource": {"ALL"},
	}
	if err := e.get(ctx, inventory.HotelsByCityPath, q, &body); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(body.Data))
	for _, h := range body.Data {
		if h.HotelID == "" {
			continue
		}
		ids = append(ids, h.HotelID)
		if len(ids) == e.maxCandidates {
			break
		}
	}
	if len(ids) == 0 {
		return nil, &stageError{kind: models.KindNotFound, msg: "No hotels found in city " + city}
	}
	return ids, nil
}

type offersResponse struct {
	Data []struct {
		Hotel struct {
			HotelID  string `json:"hotelId"`
			Name     string `json:"name"`
			CityCode string `json:"cityCode"`
			Address  struct {
				CityName string `json:"cityName"`
			} `json:"address"`
		} `json:"hotel"`
		Available bool `json:"available"`
		Offers    []struct {
			CheckInDate  string `json:"checkInDate"`
			CheckOutDate string `json:"checkOutDate"`
			Price        struct {
				Total    string `json:"total"`
				Currency string `json:"currency"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"data"`
}

func (e *Engine) offers(ctx context.Context, city string, ids []string, p Params) ([]models.HotelOffer, error) {
	q := url.Values{
		"hotelIds":     {strings.Join(ids, ",")},
		"checkInDate":  {p.CheckIn.String()},
		"checkOutDate": {p.CheckOut.String()},
		"adults":       {strconv.Itoa(p.Adults)},
		"roomQuantity": {"1"},
		"currency":     {e.currency},
		"bestRateOnly": {"true"},
	}
	var body offersResponse
	if err := e.get(ctx, inventory.HotelOffersPath, q, &body); err != nil {
		return nil, err
	}

	out := make([]models.HotelOffer, 0, len(body.Data))
	for _, item := range body.Data {
		if !item.Available || len(item.Offers) == 0 {
			continue
		}
		best := item.Offers[0]
		total, err := strconv.ParseFloat(best.Price.Total, 64)
		if err != nil {
			total = 0
		}
		checkIn := firstNonEmpty(best.CheckInDate, p.CheckIn.String())
		checkOut := firstNonEmpty(best.CheckOutDate, p.CheckOut.String())
		offer, err := models.NewHotelOffer(item.Hotel.HotelID, item.Hotel.Name,
			models.HotelPrice{Total: total, Currency: best.Price.Currency}, checkIn, checkOut)
		if err != nil {
			e.logger.Warn("skipping invalid hotel offer", zap.String("hotel_id", item.Hotel.HotelID), zap.Error(err))
			continue
		}
		offer.Location = firstNonEmpty(item.Hotel.Address.CityName, item.Hotel.CityCode, city)
		out = append(out, offer)
	}
	if len(out) == 0 {
		return nil, &stageError{
			kind: models.KindNotFound,
			msg:  fmt.Sprintf("No hotel offers available for %s between %s and %s", city, p.CheckIn, p.CheckOut),
		}
	}
	return out, nil
}

// get classifies failures: transport errors, rate limits and 5xx answers are
// retryable, a 401 is an auth failure, anything else passes the upstream
// detail through.
func (e *Engine) get(ctx context.Context, path string, q url.Values, v any) error {
	resp, err := e.session.Do(ctx, inventory.Request{Method: http.MethodGet, Path: path, Query: q})
	if err != nil {
		if inventory.IsAuthError(err) {
			return &stageError{kind: models.KindAuth, msg: "authentication with the hotel inventory failed: " + err.Error()}
		}
		return &stageError{kind: models.KindUpstream, msg: "hotel search failed: " + err.Error(), retryable: ctx.Err() == nil}
	}
	if err := resp.Err(); err != nil {
		var se *inventory.StatusError
		errors.As(err, &se)
		switch {
		case errors.Is(err, inventory.ErrUnauthorized):
			return &stageError{kind: models.KindAuth, msg: "authentication expired or was rejected by the hotel inventory"}
		case errors.Is(err, inventory.ErrRateLimited):
			return &stageError{kind: models.KindRateLimit, msg: se.Detail, retryable: true}
		case se.StatusCode >= http.StatusInternalServerError:
			return &stageError{kind: models.KindUpstream, msg: se.Detail, retryable: true}
		default:
			return &stageError{kind: models.KindUpstream, msg: se.Detail}
		}
	}
	if err := resp.Decode(v); err != nil {
		return &stageError{kind: models.KindUnexpected, msg: err.Error(), retryable: true}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// knownCities covers airports whose city code differs from their own or
// that are looked up often enough to skip the directory call.
var knownCities = map[string]string{
	"LHR": "LON", "LGW": "LON", "STN": "LON", "LTN": "LON", "LCY": "LON",
	"CDG": "PAR", "ORY": "PAR",
	"JFK": "NYC", "LGA": "NYC", "EWR": "NYC",
	"ORD": "CHI", "MDW": "CHI",
	"IAH": "HOU", "HOU": "HOU",
	"IAD": "WAS", "DCA": "WAS",
	"LAX": "LAX",
	"DXB": "DXB",
	"IST": "IST",
	"FRA": "FRA",
	"AMS": "AMS",
	"BER": "BER", "SXF": "BER",
	"MAD": "MAD",
	"BCN": "BCN",
	"FCO": "ROM", "CIA": "ROM",
	"MXP": "MIL", "LIN": "MIL",
	"TAS": "TAS",
	"NRT": "TYO", "HND": "TYO",
	"SIN": "SIN",
	"BKK": "BKK",
}
