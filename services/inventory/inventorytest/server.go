// Package inventorytest provides a fake inventory API for tests.
package inventorytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"travelagent/services/inventory"
)

// Server is an httptest server with per-path handlers and call counters.
// The token endpoint issues "token-1", "token-2", ... unless overridden.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    map[string]int
	tokens   int
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		handlers: make(map[string]http.HandlerFunc),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[r.URL.Path]++
	h, ok := s.handlers[r.URL.Path]
	s.mu.Unlock()

	if ok {
		h(w, r)
		return
	}
	if r.URL.Path == inventory.TokenPath {
		s.issueToken(w)
		return
	}
	WriteJSON(w, http.StatusNotFound, ErrorBody("no handler for "+r.URL.Path))
}

func (s *Server) issueToken(w http.ResponseWriter) {
	s.mu.Lock()
	s.tokens++
	n := s.tokens
	s.mu.Unlock()
	WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": fmt.Sprintf("token-%d", n),
		"expires_in":   1799,
		"token_type":   "Bearer",
	})
}

// Handle registers h for an exact URL path.
func (s *Server) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// Calls returns how many requests path has received.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TokenCalls is Calls(inventory.TokenPath).
func (s *Server) TokenCalls() int {
	return s.Calls(inventory.TokenPath)
}

// Session returns a session pointed at the server with fast retry settings.
func (s *Server) Session() *inventory.Session {
	return inventory.NewSession(inventory.Config{
		BaseURL:      s.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Timeout:      5 * time.Second,
		ProbePath:    "/probe",
	}, zap.NewNop())
}

// FastBackoff keeps retry tests quick.
func FastBackoff(attempts int) inventory.Backoff {
	return inventory.Backoff{Attempts: attempts, Base: time.Millisecond, Pause: time.Millisecond}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the upstream's error envelope.
func ErrorBody(detail string) map[string]any {
	return map[string]any{
		"errors": []map[string]any{{"status": 400, "title": "ERROR", "detail": detail}},
	}
}

// Bearer returns the token carried by r.
func Bearer(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) {
		return h[len(prefix):]
	}
	return ""
}
