package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// State of the session's bearer credential.
type State int

const (
	Unauthenticated State = iota
	Valid
	Expired
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "unauthenticated"
	}
}

// Credential is an opaque bearer token.
type Credential string

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	// RequestsPerSecond caps outgoing API calls; zero means unlimited.
	RequestsPerSecond float64
	// ProbePath is a cheap authenticated GET used by EnsureValid.
	ProbePath  string
	HTTPClient *http.Client
}

// Session owns the client credentials and the current bearer token. It is
// safe for concurrent use; concurrent refreshes collapse into one token call.
type Session struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	group      singleflight.Group
	now        func() time.Time

	mu     sync.RWMutex
	token  Credential
	expiry time.Time
	state  State
}

func NewSession(cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Session{
		cfg:        cfg,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.Named("inventory"),
		now:        time.Now,
	}
}

// Configured reports whether client credentials were supplied.
func (s *Session) Configured() bool {
	return s.cfg.ClientID != "" && s.cfg.ClientSecret != ""
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Acquire exchanges the client credentials for a new bearer token. It does
// not retry.
func (s *Session) Acquire(ctx context.Context) (Credential, error) {
	if !s.Configured() {
		return "", &AuthError{Err: ErrNotConfigured}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseURL+TokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &AuthError{Err: &TransportError{Op: "token request", Err: err}}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &AuthError{Err: fmt.Errorf("failed to parse token response: %w", err)}
	}
	if result.AccessToken == "" {
		return "", &AuthError{Detail: "token response carried no access_token"}
	}

	ttl := time.Duration(result.ExpiresIn-30) * time.Second
	if ttl < 0 {
		ttl = 0
	}

	s.mu.Lock()
	s.token = Credential(result.AccessToken)
	s.expiry = s.now().Add(ttl)
	s.state = Valid
	s.mu.Unlock()

	s.logger.Debug("acquired credential", zap.Int("expires_in", result.ExpiresIn))
	return Credential(result.AccessToken), nil
}

// Credential returns a usable credential. The first acquisition is not
// retried; a credential past its lifetime is refreshed.
func (s *Session) Credential(ctx context.Context) (Credential, error) {
	s.mu.RLock()
	token, state, expiry := s.token, s.state, s.expiry
	s.mu.RUnlock()

	switch {
	case state == Valid && s.now().Before(expiry):
		return token, nil
	case state == Unauthenticated:
		v, err, _ := s.group.Do("acquire", func() (any, error) {
			s.mu.RLock()
			current, st := s.token, s.state
			s.mu.RUnlock()
			if st == Valid {
				return current, nil
			}
			return s.Acquire(ctx)
		})
		if err != nil {
			return "", err
		}
		return v.(Credential), nil
	default:
		return s.Refresh(ctx, token)
	}
}

// Refresh replaces stale with a fresh credential. If another caller already
// replaced it, the current credential is returned without a token call.
// Acquisition is retried once before an *AuthError is returned.
func (s *Session) Refresh(ctx context.Context, stale Credential) (Credential, error) {
	if cred, ok := s.replaced(stale); ok {
		return cred, nil
	}

	v, err, shared := s.group.Do("refresh", func() (any, error) {
		if cred, ok := s.replaced(stale); ok {
			return cred, nil
		}
		s.MarkExpired(stale)
		cred, err := s.Acquire(ctx)
		if err != nil {
			s.logger.Warn("credential refresh failed, retrying once", zap.Error(err))
			cred, err = s.Acquire(ctx)
		}
		return cred, err
	})
	if err != nil {
		s.logger.Error("credential refresh failed", zap.Error(err))
		return "", err
	}
	if shared {
		s.logger.Debug("joined in-flight credential refresh")
	}
	return v.(Credential), nil
}

func (s *Session) replaced(stale Credential) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == Valid && s.token != "" && s.token != stale && s.now().Before(s.expiry) {
		return s.token, true
	}
	return "", false
}

// MarkExpired flags cred as no longer usable. It is a no-op if cred is not
// the current credential.
func (s *Session) MarkExpired(cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Valid && s.token == cred {
		s.state = Expired
	}
}

// EnsureValid probes the API with cred and re-acquires on a 401 or a
// transport failure. Any other answer keeps cred.
func (s *Session) EnsureValid(ctx context.Context, cred Credential) (Credential, error) {
	if cred == "" {
		return s.Credential(ctx)
	}
	path := s.cfg.ProbePath
	if path == "" {
		path = AirlinesPath + "?airlineCodes=BA"
	}
	resp, err := s.send(ctx, cred, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Debug("credential probe failed", zap.Error(err))
		return s.Refresh(ctx, cred)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return s.Refresh(ctx, cred)
	}
	return cred, nil
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body any
}

type Response struct {
	StatusCode int
	Body       []byte
	Credential Credential
}

// Err is nil for a 2xx answer and a *StatusError otherwise.
func (r *Response) Err() error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, Detail: errorDetail(r.Body)}
}

func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse inventory response: %w", err)
	}
	return nil
}

// Do sends an authenticated request with the current credential. Non-2xx
// answers are returned as a Response, not an error; a 401 also marks the
// credential expired. The returned error is an *AuthError or *TransportError.
func (s *Session) Do(ctx context.Context, r Request) (*Response, error) {
	cred, err := s.Credential(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.send(ctx, cred, r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		s.MarkExpired(cred)
	}
	return resp, nil
}

// DoWithReauth is Do plus one refresh-and-retry on a 401.
func (s *Session) DoWithReauth(ctx context.Context, r Request) (*Response, error) {
	resp, err := s.Do(ctx, r)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if _, err := s.Refresh(ctx, resp.Credential); err != nil {
		return nil, err
	}
	return s.Do(ctx, r)
}

func (s *Session) send(ctx context.Context, cred Credential, r Request) (*Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: "rate limiter", Err: err}
	}

	target := s.cfg.BaseURL + r.Path
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(r.Path, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+string(cred))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := s.now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: r.Method + " " + r.Path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read " + r.Path, Err: err}
	}

	s.logger.Debug("inventory call",
		zap.String("method", r.Method),
		zap.String("path", r.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", s.now().Sub(start)),
	)
	return &Response{StatusCode: resp.StatusCode, Body: respBody, Credential: cred}, nil
}
