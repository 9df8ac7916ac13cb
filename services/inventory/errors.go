package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches a *StatusError carrying a 401.
	ErrUnauthorized = errors.New("inventory: unauthorized")
	// ErrRateLimited matches a *StatusError carrying a 429.
	ErrRateLimited = errors.New("inventory: rate limited")
	// ErrNotConfigured is returned when no client credentials are set.
	ErrNotConfigured = errors.New("inventory: client credentials not configured")
)

// StatusError is any non-2xx answer from the inventory API. Detail is the
// upstream's own error text.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("amadeus error (%d): %s", e.StatusCode, e.Detail)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// AuthError means no credential could be obtained from the identity endpoint.
type AuthError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("inventory authentication failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("inventory authentication failed (%d): %s", e.StatusCode, e.Detail)
	default:
		return "inventory authentication failed: " + e.Detail
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransportError wraps network failures and timeouts, where no HTTP status exists.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// errorDetail pulls errors[0].detail (or title) out of an API error body,
// falling back to the raw body text.
func errorDetail(body []byte) string {
	var payload struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Errors) > 0 {
			if payload.Errors[0].Detail != "" {
				return payload.Errors[0].Detail
			}
			if payload.Errors[0].Title != "" {
				return payload.Errors[0].Title
			}
		}
		if payload.ErrorDescription != "" {
			return payload.ErrorDescription
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response body"
	}
	return text
}
