package trip

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"travelagent/models"
	"travelagent/services/cache"
	"travelagent/services/compiler"
	"travelagent/services/flights"
	"travelagent/services/hotels"
	"travelagent/services/inventory"
)

type Interpreter interface {
	Interpret(ctx context.Context, text string) models.TripQuery
}

// Resolver returns a place's code, location.ErrNotFound, or the auth error
// that stopped the lookup.
type Resolver interface {
	Lookup(ctx context.Context, name string) (string, error)
}

type FlightSearcher interface {
	Search(ctx context.Context, p flights.Params) models.FlightSearchResult
}

type HotelSearcher interface {
	Search(ctx context.Context, p hotels.Params) models.HotelSearchResult
}

// Authenticator is the part of the inventory session the orchestrator
// drives directly.
type Authenticator interface {
	Credential(ctx context.Context) (inventory.Credential, error)
	EnsureValid(ctx context.Context, cred inventory.Credential) (inventory.Credential, error)
	Refresh(ctx context.Context, stale inventory.Credential) (inventory.Credential, error)
}

// Recorder persists a log line per handled request.
type Recorder interface {
	SaveSearch(ctx context.Context, log models.SearchLog) error
}

type Service struct {
	interpreter     Interpreter
	resolver        Resolver
	flights         FlightSearcher
	hotels          HotelSearcher
	auth            Authenticator
	recorder        Recorder
	flightOffers    *cache.Cache[models.FlightOffer]
	offerTTL        time.Duration
	maxResults      int
	hotelMaxResults int
	timeout         time.Duration
	logger          *zap.Logger
}

type Option func(*Service)

// WithRecorder enables the search log. Recording failures are logged and
// otherwise ignored.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithMaxResults(flights, hotels int) Option {
	return func(s *Service) {
		if flights > 0 {
			s.maxResults = flights
		}
		if hotels > 0 {
			s.hotelMaxResults = hotels
		}
	}
}

func WithOfferTTL(ttl time.Duration) Option {
	return func(s *Service) { s.offerTTL = ttl }
}

// WithTimeout bounds a whole request, pending retries included.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(interp Interpreter, resolver Resolver, fl FlightSearcher, ht HotelSearcher, auth Authenticator, opts ...Option) *Service {
	s := &Service{
		interpreter:     interp,
		resolver:        resolver,
		flights:         fl,
		hotels:          ht,
		auth:            auth,
		flightOffers:    cache.New[models.FlightOffer](nil),
		offerTTL:        30 * time.Minute,
		maxResults:      compiler.DefaultMaxResults,
		hotelMaxResults: compiler.DefaultMaxResults,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("trip")
	return s
}

func offerKey(searchID, leg, offerID string) string {
	return searchID + "|" + leg + "|" + offerID
}

// LookupOffer returns a flight offer from a recent search, raw upstream
// payload included.
func (s *Service) LookupOffer(searchID, leg, offerID string) (models.FlightOffer, bool) {
	return s.flightOffers.Get(offerKey(searchID, leg, offerID))
}

// HandleTripRequest runs the whole pipeline for one prompt. It always
// returns a structured response; failed legs are reported next to the
// successful ones.
func (s *Service) HandleTripRequest(ctx context.Context, prompt string) models.TripResponse {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	searchID := uuid.NewString()
	log := s.logger.With(zap.String("search_id", searchID))

	q := s.interpreter.Interpret(ctx, prompt)
	if missing := q.MissingFields(); len(missing) > 0 {
		resp := models.Fail(models.KindInput, "Missing required trip details: "+strings.Join(missing, ", "))
		resp.Query = &q
		resp.Notices = q.Issues
		log.Info("trip request incomplete", zap.Strings("missing", missing))
		return resp
	}

	cred, err := s.auth.Credential(ctx)
	if err == nil {
		cred, err = s.auth.EnsureValid(ctx, cred)
	}
	if err != nil {
		return s.authFailure(log, q, err)
	}

	origin, destination, unresolved, err := s.resolvePlaces(ctx, q)
	if err != nil {
		return s.authFailure(log, q, err)
	}
	if len(unresolved) > 0 {
		resp := models.Fail(models.KindNotFound, "Could not find an airport or city code for "+strings.Join(unresolved, " and "))
		resp.Query = &q
		log.Info("trip places unresolved", zap.Strings("places", unresolved))
		return resp
	}

	legs := s.searchLegs(ctx, cred, q, origin, destination)
	resp := s.compile(searchID, q, legs)
	resp.Query = &q

	log.Info("trip request handled",
		zap.String("status", string(resp.Status)),
		zap.String("origin", origin),
		zap.String("destination", destination),
		zap.Int("departure_offers", len(resp.DepartureFlights)),
		zap.Int("return_offers", len(resp.ReturnFlights)),
		zap.Int("hotels", len(resp.Hotels)))

	s.record(ctx, models.SearchLog{
		ID:          searchID,
		Prompt:      prompt,
		Query:       q,
		Origin:      origin,
		Destination: destination,
		Status:      resp.Status,
		OfferCount:  len(resp.DepartureFlights) + len(resp.ReturnFlights) + len(resp.Hotels),
		CreatedAt:   time.Now().UTC(),
	})
	return resp
}

func authMessage(err error) string {
	if errors.Is(err, inventory.ErrNotConfigured) {
		return "The flight inventory is not configured"
	}
	return "Could not authenticate with the flight inventory: " + err.Error()
}

func (s *Service) authFailure(log *zap.Logger, q models.TripQuery, err error) models.TripResponse {
	log.Error("inventory authentication failed", zap.Error(err))
	resp := models.Fail(models.KindAuth, authMessage(err))
	resp.Query = &q
	return resp
}

// resolvePlaces looks up both places concurrently. A failure to
// authenticate is returned as err; anything else unresolved is listed.
func (s *Service) resolvePlaces(ctx context.Context, q models.TripQuery) (origin, destination string, unresolved []string, err error) {
	var (
		g                errgroup.Group
		errOrig, errDest error
	)
	g.Go(func() error {
		origin, errOrig = s.resolver.Lookup(ctx, q.OriginName)
		return nil
	})
	g.Go(func() error {
		destination, errDest = s.resolver.Lookup(ctx, q.DestinationName)
		return nil
	})
	_ = g.Wait()

	for _, e := range []error{errOrig, errDest} {
		if inventory.IsAuthError(e) {
			return "", "", nil, e
		}
	}
	if errOrig != nil {
		unresolved = append(unresolved, q.OriginName)
	}
	if errDest != nil {
		unresolved = append(unresolved, q.DestinationName)
	}
	return origin, destination, unresolved, nil
}

type legResults struct {
	departure models.FlightSearchResult
	ret       *models.FlightSearchResult
	hotels    *models.HotelSearchResult
}

// searchLegs runs every requested leg concurrently and joins on all of them.
func (s *Service) searchLegs(ctx context.Context, cred inventory.Credential, q models.TripQuery, origin, destination string) legResults {
	var (
		res legResults
		wg  sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.departure = s.searchFlight(ctx, cred, flights.Params{
			Origin:      origin,
			Destination: destination,
			Date:        q.DepartDate,
			Cabin:       q.CabinClass,
			Passengers:  q.PassengerCount,
		})
	}()

	if q.TripType == models.RoundTrip {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := s.searchFlight(ctx, cred, flights.Params{
				Origin:      destination,
				Destination: origin,
				Date:        q.ReturnDate,
				Cabin:       q.CabinClass,
				Passengers:  q.PassengerCount,
			})
			res.ret = &r
		}()
	}

	if q.HotelRequested && s.hotels != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := s.searchHotels(ctx, cred, hotels.Params{
				Destination: destination,
				CheckIn:     q.HotelCheckIn,
				CheckOut:    q.HotelCheckOut,
				Adults:      q.PassengerCount,
			})
			res.hotels = &h
		}()
	}

	wg.Wait()
	return res
}

// searchFlight refreshes the credential once on an auth failure and retries
// the leg. A second auth failure is final.
func (s *Service) searchFlight(ctx context.Context, cred inventory.Credential, p flights.Params) models.FlightSearchResult {
	res := s.flights.Search(ctx, p)
	if res.Kind != models.KindAuth {
		return res
	}
	if _, err := s.auth.Refresh(ctx, cred); err != nil {
		return models.FlightFailure(models.KindAuth, authMessage(err))
	}
	return s.flights.Search(ctx, p)
}

func (s *Service) searchHotels(ctx context.Context, cred inventory.Credential, p hotels.Params) models.HotelSearchResult {
	res := s.hotels.Search(ctx, p)
	if res.Kind != models.KindAuth {
		return res
	}
	if _, err := s.auth.Refresh(ctx, cred); err != nil {
		return models.HotelFailure(models.KindAuth, authMessage(err))
	}
	return s.hotels.Search(ctx, p)
}

// compile filters each successful leg by the price band and works out the
// overall status: error only when no leg produced anything usable.
func (s *Service) compile(searchID string, q models.TripQuery, legs legResults) models.TripResponse {
	resp := models.TripResponse{
		SearchID:         searchID,
		DepartureFlights: []models.FlightOffer{},
		Errors:           []models.LegError{},
		Notices:          q.Issues,
	}
	band := q.PriceBand()
	succeeded, failed := 0, 0

	flightLeg := func(leg string, r models.FlightSearchResult) []models.FlightOffer {
		if !r.OK() {
			failed++
			resp.Errors = append(resp.Errors, models.LegError{Leg: leg, Kind: r.Kind, Message: r.Message})
			return nil
		}
		succeeded++
		c := compiler.FilterAndRank(r.Offers, band, s.maxResults)
		if c.Fallback {
			resp.Notices = append(resp.Notices, fmt.Sprintf("%s flights: %s", leg, c.Message))
		}
		for _, o := range c.Items {
			s.flightOffers.Set(offerKey(searchID, leg, o.OfferID), o, s.offerTTL)
		}
		return c.Items
	}

	if offers := flightLeg(models.LegDeparture, legs.departure); offers != nil {
		resp.DepartureFlights = offers
	}
	if legs.ret != nil {
		resp.ReturnFlights = flightLeg(models.LegReturn, *legs.ret)
	}
	if legs.hotels != nil {
		if legs.hotels.OK() {
			succeeded++
			resp.Hotels = compiler.FilterAndRank(legs.hotels.Offers, models.PriceBand{}, s.hotelMaxResults).Items
		} else {
			failed++
			resp.Errors = append(resp.Errors, models.LegError{Leg: models.LegHotels, Kind: legs.hotels.Kind, Message: legs.hotels.Message})
		}
	}

	switch {
	case failed == 0:
		resp.Status = models.StatusSuccess
	case succeeded == 0:
		resp.Status = models.StatusError
		resp.Kind = resp.Errors[0].Kind
		resp.Message = resp.Errors[0].Message
	default:
		resp.Status = models.StatusPartial
	}
	return resp
}

func (s *Service) record(ctx context.Context, entry models.SearchLog) {
	if s.recorder == nil {
		return
	}
	// the request deadline may already be spent
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.SaveSearch(ctx, entry); err != nil {
		s.logger.Warn("failed to record search", zap.String("search_id", entry.ID), zap.Error(err))
	}
}

// SweepOffers drops expired offers every interval until ctx is done.
func (s *Service) SweepOffers(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.flightOffers.Sweep(); n > 0 {
				s.logger.Debug("expired offers dropped", zap.Int("count", n))
			}
		}
	}
}
