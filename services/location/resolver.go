package location

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"travelagent/services/cache"
	"travelagent/services/inventory"
)

type entryState int

const (
	stateResolved entryState = iota + 1
	stateNotFound
	statePendingRetry
)

type entry struct {
	state entryState
	code  string
	// err is set when the lookup could not authenticate.
	err error
}

// ErrNotFound is returned by Lookup when no code exists for a place or the
// directory could not be reached.
var ErrNotFound = errors.New("location: no code found")

// Resolver maps free-text place names to IATA airport or city codes. Results
// live for the lifetime of the Resolver; an optional shared Store is read
// before the upstream directory and written after it.
type Resolver struct {
	session   *inventory.Session
	backoff   inventory.Backoff
	logger    *zap.Logger
	pageLimit int

	store    cache.Store
	storeTTL time.Duration

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

type Option func(*Resolver)

func WithBackoff(b inventory.Backoff) Option {
	return func(r *Resolver) { r.backoff = b }
}

// WithStore adds a shared second-level cache for resolved codes.
func WithStore(s cache.Store, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.store = s
		r.storeTTL = ttl
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(session *inventory.Session, opts ...Option) *Resolver {
	r := &Resolver{
		session:   session,
		backoff:   inventory.DefaultBackoff(),
		logger:    zap.NewNop(),
		pageLimit: 5,
		entries:   make(map[string]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("location")
	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve returns the code for name using the configured attempt budget.
func (r *Resolver) Resolve(ctx context.Context, name string) (string, bool) {
	return r.ResolveWithRetries(ctx, name, r.backoff.MaxAttempts())
}

// ResolveWithRetries makes at most maxRetries upstream attempts. Blank input
// is not found without a network call. Upstream unavailability is reported
// as not found, never as an error.
func (r *Resolver) ResolveWithRetries(ctx context.Context, name string, maxRetries int) (string, bool) {
	code, err := r.lookupWithRetries(ctx, name, maxRetries)
	return code, err == nil
}

// Lookup is Resolve for callers that must tell a missing place from a
// rejected credential: it returns ErrNotFound, or an *inventory.AuthError
// when the session could not authenticate.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, error) {
	return r.lookupWithRetries(ctx, name, r.backoff.MaxAttempts())
}

func (r *Resolver) lookupWithRetries(ctx context.Context, name string, maxRetries int) (string, error) {
	key := normalize(name)
	if key == "" {
		return "", ErrNotFound
	}

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		switch e.state {
		case stateResolved:
			return e.code, nil
		case stateNotFound:
			return "", ErrNotFound
		}
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		return r.lookup(ctx, key, strings.TrimSpace(name), maxRetries), nil
	})
	res := v.(entry)
	switch {
	case res.state == stateResolved:
		return res.code, nil
	case res.err != nil:
		return "", res.err
	default:
		return "", ErrNotFound
	}
}

func (r *Resolver) lookup(ctx context.Context, key, name string, maxRetries int) entry {
	if r.store != nil {
		var code string
		err := r.store.Get(ctx, key, &code)
		if err == nil && code != "" {
			e := entry{state: stateResolved, code: code}
			r.remember(key, e)
			return e
		}
		if err != nil && !errors.Is(err, cache.ErrMiss) {
			r.logger.Warn("location store read failed", zap.String("place", name), zap.Error(err))
		}
	}

	e := r.fetch(ctx, name, maxRetries)
	r.remember(key, e)

	if e.state == stateResolved && r.store != nil {
		if err := r.store.Set(ctx, key, e.code, r.storeTTL); err != nil {
			r.logger.Warn("location store write failed", zap.String("place", name), zap.Error(err))
		}
	}
	return e
}

func (r *Resolver) remember(key string, e entry) {
	r.mu.Lock()
	r.entries[key] = e
	r.mu.Unlock()
}

type locationsResponse struct {
	Data []struct {
		Type     string `json:"type"`
		SubType  string `json:"subType"`
		Name     string `json:"name"`
		IATACode string `json:"iataCode"`
		Address  struct {
			CityName string `json:"cityName"`
			CityCode string `json:"cityCode"`
		} `json:"address"`
	} `json:"data"`
}

func (r *Resolver) fetch(ctx context.Context, name string, maxRetries int) entry {
	if maxRetries < 1 {
		maxRetries = 1
	}
	req := inventory.Request{
		Method: http.MethodGet,
		Path:   inventory.LocationsPath,
		Query: url.Values{
			"subType":     {"AIRPORT,CITY"},
			"keyword":     {name},
			"page[limit]": {strconv.Itoa(r.pageLimit)},
		},
	}

	reauthed := false
	rateLimited := 0
	for attempt := 0; attempt < maxRetries; {
		if ctx.Err() != nil {
			break
		}
		resp, err := r.session.Do(ctx, req)
		switch {
		case err != nil:
			if inventory.IsAuthError(err) {
				r.logger.Error("location lookup could not authenticate", zap.String("place", name), zap.Error(err))
				return entry{state: statePendingRetry, err: err}
			}
			r.logger.Warn("location lookup transport error",
				zap.String("place", name), zap.Int("attempt", attempt+1), zap.Error(err))
			attempt++
			if attempt < maxRetries {
				_ = inventory.Sleep(ctx, r.backoff.Pause)
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized && !reauthed:
			reauthed = true
			if _, err := r.session.Refresh(ctx, resp.Credential); err != nil {
				r.logger.Error("location lookup refresh failed", zap.String("place", name), zap.Error(err))
				return entry{state: statePendingRetry, err: err}
			}
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := r.backoff.Delay(rateLimited)
			rateLimited++
			attempt++
			r.logger.Warn("location lookup rate limited",
				zap.String("place", name), zap.Duration("backoff", delay))
			if attempt < maxRetries {
				_ = inventory.Sleep(ctx, delay)
			}
			continue

		case resp.Err() != nil:
			r.logger.Warn("location lookup failed",
				zap.String("place", name), zap.Int("attempt", attempt+1), zap.Error(resp.Err()))
			attempt++
			if attempt < maxRetries {
				_ = inventory.Sleep(ctx, r.backoff.Pause)
			}
			continue
		}

		var body locationsResponse
		if err := resp.Decode(&body); err != nil {
			r.logger.Warn("location lookup returned malformed body", zap.String("place", name), zap.Error(err))
			attempt++
			continue
		}
		if code := pick(name, body); code != "" {
			r.logger.Debug("resolved place", zap.String("place", name), zap.String("code", code))
			return entry{state: stateResolved, code: code}
		}
		return entry{state: stateNotFound}
	}

	r.logger.Warn("location lookup gave up", zap.String("place", name), zap.Int("attempts", maxRetries))
	return entry{state: statePendingRetry}
}

// pick prefers a city whose name equals the query, then the first candidate
// that carries a code.
func pick(name string, body locationsResponse) string {
	for _, loc := range body.Data {
		if strings.EqualFold(loc.SubType, "CITY") && loc.IATACode != "" &&
			(strings.EqualFold(loc.Name, name) || strings.EqualFold(loc.Address.CityName, name)) {
			return strings.ToUpper(loc.IATACode)
		}
	}
	for _, loc := range body.Data {
		if loc.IATACode != "" {
			return strings.ToUpper(loc.IATACode)
		}
	}
	return ""
}
