package flights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"travelagent/models"
	"travelagent/services/inventory"
)

// CabinPolicy decides what happens to offers that are mostly outside the
// requested cabin.
type CabinPolicy string

const (
	CabinFilter CabinPolicy = "filter"
	CabinReject CabinPolicy = "reject"
)

func ParseCabinPolicy(s string) CabinPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(CabinReject)) {
		return CabinReject
	}
	return CabinFilter
}

type Params struct {
	Origin      string
	Destination string
	Date        *models.Date
	Cabin       models.CabinClass
	Passengers  int
	// MaxOffers of zero uses the engine default.
	MaxOffers int
}

// Engine searches one directed leg at a time.
type Engine struct {
	session   *inventory.Session
	names     *Directory
	backoff   inventory.Backoff
	policy    CabinPolicy
	maxOffers int
	currency  string
	logger    *zap.Logger
}

type Option func(*Engine)

func WithBackoff(b inventory.Backoff) Option {
	return func(e *Engine) { e.backoff = b }
}

func WithCabinPolicy(p CabinPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithMaxOffers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxOffers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(session *inventory.Session, opts ...Option) *Engine {
	e := &Engine{
		session:   session,
		backoff:   inventory.DefaultBackoff(),
		policy:    CabinFilter,
		maxOffers: 5,
		currency:  "USD",
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("flights")
	e.names = NewDirectory(session, e.logger)
	return e
}

// Names exposes the engine's airline and aircraft name cache.
func (e *Engine) Names() *Directory {
	return e.names
}

func (p Params) validate() error {
	var missing []string
	if strings.TrimSpace(p.Origin) == "" {
		missing = append(missing, "origin")
	}
	if strings.TrimSpace(p.Destination) == "" {
		missing = append(missing, "destination")
	}
	if p.Date == nil || p.Date.IsZero() {
		missing = append(missing, "departure date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required search field(s): %s", strings.Join(missing, ", "))
	}
	if strings.EqualFold(p.Origin, p.Destination) {
		return fmt.Errorf("origin and destination are both %s", strings.ToUpper(p.Origin))
	}
	return nil
}

// Search issues one flight-offers request for the leg and normalizes the
// answer. It never refreshes credentials itself: a 401 comes back as an
// auth-kind failure for the caller to handle.
func (e *Engine) Search(ctx context.Context, p Params) models.FlightSearchResult {
	if err := p.validate(); err != nil {
		return models.FlightFailure(models.KindInput, err.Error())
	}
	if p.Cabin == "" {
		p.Cabin = models.Economy
	}
	if p.Passengers < 1 {
		p.Passengers = 1
	}
	if p.MaxOffers <= 0 {
		p.MaxOffers = e.maxOffers
	}

	log := e.logger.With(
		zap.String("origin", p.Origin),
		zap.String("destination", p.Destination),
		zap.String("date", p.Date.String()),
	)

	req := inventory.Request{
		Method: http.MethodPost,
		Path:   inventory.FlightOffersPath,
		Body:   e.buildRequest(p),
	}

	var resp *inventory.Response
	rateLimited := 0
	attempts := e.backoff.MaxAttempts()
	for attempt := 1; ; attempt++ {
		var err error
		resp, err = e.session.Do(ctx, req)
		if err != nil {
			if inventory.IsAuthError(err) {
				return models.FlightFailure(models.KindAuth, "authentication with the flight inventory failed: "+err.Error())
			}
			if ctx.Err() != nil || attempt >= attempts {
				log.Error("flight search transport failure", zap.Error(err))
				return models.FlightFailure(models.KindUpstream, "flight search failed: "+err.Error())
			}
			log.Warn("flight search transport error, retrying", zap.Int("attempt", attempt), zap.Error(err))
			if inventory.Sleep(ctx, e.backoff.Pause) != nil {
				return models.FlightFailure(models.KindUpstream, "flight search cancelled: "+ctx.Err().Error())
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < attempts {
			delay := e.backoff.Delay(rateLimited)
			rateLimited++
			log.Warn("flight search rate limited", zap.Duration("backoff", delay))
			if inventory.Sleep(ctx, delay) != nil {
				return models.FlightFailure(models.KindRateLimit, "flight search cancelled while rate limited")
			}
			continue
		}
		break
	}

	if err := resp.Err(); err != nil {
		var se *inventory.StatusError
		errors.As(err, &se)
		switch {
		case errors.Is(err, inventory.ErrUnauthorized):
			return models.FlightFailure(models.KindAuth, "authentication expired or was rejected by the flight inventory")
		case errors.Is(err, inventory.ErrRateLimited):
			return models.FlightFailure(models.KindRateLimit, se.Detail)
		default:
			log.Warn("flight search rejected", zap.Int("status", se.StatusCode), zap.String("detail", se.Detail))
			return models.FlightFailure(models.KindUpstream, se.Detail)
		}
	}

	offers, err := e.normalize(ctx, resp.Body)
	if err != nil {
		log.Error("flight offers could not be parsed", zap.Error(err))
		return models.FlightFailure(models.KindUpstream, err.Error())
	}

	offers, mismatched := applyCabin(offers, p.Cabin)
	if mismatched > 0 {
		if e.policy == CabinReject {
			return models.FlightFailure(models.KindUpstream,
				fmt.Sprintf("%d offer(s) include segments outside the requested %s cabin", mismatched, p.Cabin))
		}
		log.Debug("dropped offers outside requested cabin", zap.Int("dropped", mismatched))
	}

	log.Info("flight search complete", zap.Int("offers", len(offers)))
	return models.FlightSuccess(offers)
}

type originDestination struct {
	ID                      string `json:"id"`
	OriginLocationCode      string `json:"originLocationCode"`
	DestinationLocationCode string `json:"destinationLocationCode"`
	DepartureDateTimeRange  struct {
		Date string `json:"date"`
	} `json:"departureDateTimeRange"`
}

type traveler struct {
	ID           string `json:"id"`
	TravelerType string `json:"travelerType"`
}

type cabinRestriction struct {
	Cabin                string   `json:"cabin"`
	Coverage             string   `json:"coverage"`
	OriginDestinationIDs []string `json:"originDestinationIds"`
}

type searchRequest struct {
	CurrencyCode       string              `json:"currencyCode"`
	OriginDestinations []originDestination `json:"originDestinations"`
	Travelers          []traveler          `json:"travelers"`
	Sources            []string            `json:"sources"`
	SearchCriteria     struct {
		MaxFlightOffers int `json:"maxFlightOffers"`
		FlightFilters   struct {
			CabinRestrictions []cabinRestriction `json:"cabinRestrictions"`
		} `json:"flightFilters"`
	} `json:"searchCriteria"`
}

func (e *Engine) buildRequest(p Params) searchRequest {
	od := originDestination{
		ID:                      "1",
		OriginLocationCode:      strings.ToUpper(p.Origin),
		DestinationLocationCode: strings.ToUpper(p.Destination),
	}
	od.DepartureDateTimeRange.Date = p.Date.String()

	req := searchRequest{
		CurrencyCode:       e.currency,
		OriginDestinations: []originDestination{od},
		Sources:            []string{"GDS"},
	}
	for i := 1; i <= p.Passengers; i++ {
		req.Travelers = append(req.Travelers, traveler{ID: fmt.Sprint(i), TravelerType: "ADULT"})
	}
	req.SearchCriteria.MaxFlightOffers = p.MaxOffers
	req.SearchCriteria.FlightFilters.CabinRestrictions = []cabinRestriction{{
		Cabin:                string(p.Cabin),
		Coverage:             "MOST_SEGMENTS",
		OriginDestinationIDs: []string{"1"},
	}}
	return req
}

// applyCabin drops offers where the requested cabin does not cover a strict
// majority of the segments that report a cabin.
func applyCabin(offers []models.FlightOffer, cabin models.CabinClass) ([]models.FlightOffer, int) {
	kept := make([]models.FlightOffer, 0, len(offers))
	dropped := 0
	for _, o := range offers {
		reported, matched := 0, 0
		for _, s := range o.Segments() {
			if s.Cabin == "" {
				continue
			}
			reported++
			if strings.EqualFold(s.Cabin, string(cabin)) {
				matched++
			}
		}
		if reported > 0 && matched*2 <= reported {
			dropped++
			continue
		}
		kept = append(kept, o)
	}
	return kept, dropped
}
