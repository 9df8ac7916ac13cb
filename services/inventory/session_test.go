package inventory_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/services/inventory"
	"travelagent/services/inventory/inventorytest"
)

func TestSession_CredentialAcquiresOnce(t *testing.T) {
	srv := inventorytest.NewServer(t)
	s := srv.Session()
	ctx := context.Background()

	assert.Equal(t, inventory.Unauthenticated, s.State())

	first, err := s.Credential(ctx)
	require.NoError(t, err)
	second, err := s.Credential(ctx)
	require.NoError(t, err)

	assert.Equal(t, inventory.Credential("token-1"), first)
	assert.Equal(t, first, second)
	assert.Equal(t, inventory.Valid, s.State())
	assert.Equal(t, 1, srv.TokenCalls())
}

func TestSession_AcquireFailureIsAuthError(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle(inventory.TokenPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "invalid_client",
			"error_description": "Client credentials are invalid",
		})
	})

	_, err := srv.Session().Credential(context.Background())
	require.Error(t, err)

	var authErr *inventory.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, "Client credentials are invalid", authErr.Detail)
	assert.Equal(t, 1, srv.TokenCalls())
}

func TestSession_NotConfigured(t *testing.T) {
	s := inventory.NewSession(inventory.Config{BaseURL: "http://127.0.0.1:1"}, nil)
	assert.False(t, s.Configured())

	_, err := s.Credential(context.Background())
	assert.ErrorIs(t, err, inventory.ErrNotConfigured)
}

func TestSession_ConcurrentRefreshCollapses(t *testing.T) {
	srv := inventorytest.NewServer(t)
	s := srv.Session()
	ctx := context.Background()

	stale, err := s.Credential(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]inventory.Credential, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := s.Refresh(ctx, stale)
			assert.NoError(t, err)
			results[i] = cred
		}(i)
	}
	wg.Wait()

	for _, cred := range results {
		assert.Equal(t, inventory.Credential("token-2"), cred)
	}
	assert.Equal(t, 2, srv.TokenCalls())
}

func TestSession_RefreshRetriesOnce(t *testing.T) {
	srv := inventorytest.NewServer(t)
	var mu sync.Mutex
	calls := 0
	srv.Handle(inventory.TokenPath, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			inventorytest.WriteJSON(w, http.StatusInternalServerError, inventorytest.ErrorBody("boom"))
			return
		}
		inventorytest.WriteJSON(w, http.StatusOK, map[string]any{"access_token": "fresh", "expires_in": 1799})
	})
	s := srv.Session()
	ctx := context.Background()

	stale, err := s.Credential(ctx)
	require.NoError(t, err)

	// second call fails, third succeeds
	cred, err := s.Refresh(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, inventory.Credential("fresh"), cred)
	assert.Equal(t, 3, srv.TokenCalls())
}

func TestSession_DoMarksExpiredOn401(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle("/data", func(w http.ResponseWriter, r *http.Request) {
		if inventorytest.Bearer(r) == "token-1" {
			inventorytest.WriteJSON(w, http.StatusUnauthorized, inventorytest.ErrorBody("Access token expired"))
			return
		}
		inventorytest.WriteJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})
	s := srv.Session()
	ctx := context.Background()

	resp, err := s.Do(ctx, inventory.Request{Method: http.MethodGet, Path: "/data"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.ErrorIs(t, resp.Err(), inventory.ErrUnauthorized)
	assert.Equal(t, inventory.Expired, s.State())

	// next call refreshes transparently
	resp, err = s.Do(ctx, inventory.Request{Method: http.MethodGet, Path: "/data"})
	require.NoError(t, err)
	assert.NoError(t, resp.Err())
	assert.Equal(t, inventory.Credential("token-2"), resp.Credential)
}

func TestSession_DoWithReauth(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle("/orders", func(w http.ResponseWriter, r *http.Request) {
		if inventorytest.Bearer(r) == "token-1" {
			inventorytest.WriteJSON(w, http.StatusUnauthorized, inventorytest.ErrorBody("expired"))
			return
		}
		inventorytest.WriteJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": "o1"}})
	})

	resp, err := srv.Session().DoWithReauth(context.Background(), inventory.Request{
		Method: http.MethodPost,
		Path:   "/orders",
		Body:   map[string]any{"data": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, srv.Calls("/orders"))
}

func TestSession_EnsureValid(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantToken  inventory.Credential
		wantTokens int
	}{
		{"ok keeps credential", http.StatusOK, "token-1", 1},
		{"server error keeps credential", http.StatusInternalServerError, "token-1", 1},
		{"unauthorized reacquires", http.StatusUnauthorized, "token-2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := inventorytest.NewServer(t)
			srv.Handle("/probe", func(w http.ResponseWriter, r *http.Request) {
				inventorytest.WriteJSON(w, tt.status, map[string]any{})
			})
			s := srv.Session()
			ctx := context.Background()

			cred, err := s.Credential(ctx)
			require.NoError(t, err)

			got, err := s.EnsureValid(ctx, cred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, got)
			assert.Equal(t, tt.wantTokens, srv.TokenCalls())
		})
	}
}

func TestResponse_ErrDetail(t *testing.T) {
	resp := &inventory.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       []byte(`{"errors":[{"status":429,"title":"Too many requests","detail":"Rate limit exceeded"}]}`),
	}
	err := resp.Err()
	assert.ErrorIs(t, err, inventory.ErrRateLimited)

	var se *inventory.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Rate limit exceeded", se.Detail)
}

func TestResponse_ErrDetailFallbacks(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"", "empty response body"},
		{"  \n", "empty response body"},
		{`{"errors":[{"title":"SYSTEM ERROR HAS OCCURRED"}]}`, "SYSTEM ERROR HAS OCCURRED"},
		{`{"error_description":"Client credentials are invalid"}`, "Client credentials are invalid"},
		{"<html>Bad Gateway</html>", "<html>Bad Gateway</html>"},
	}
	for _, tt := range tests {
		resp := &inventory.Response{StatusCode: http.StatusBadGateway, Body: []byte(tt.body)}
		var se *inventory.StatusError
		require.True(t, errors.As(resp.Err(), &se), tt.body)
		assert.Equal(t, tt.want, se.Detail, tt.body)
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := inventory.DefaultBackoff()
	assert.Equal(t, b.Base, b.Delay(0))
	assert.Equal(t, 2*b.Base, b.Delay(1))
	assert.Equal(t, 4*b.Base, b.Delay(2))
	assert.Equal(t, 1, inventory.Backoff{}.MaxAttempts())
}
