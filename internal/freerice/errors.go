package freerice

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotLoggedIn    = errors.New("session is not logged in")
	ErrMalformedGame  = errors.New("malformed game response")
	ErrMalformedLogin = errors.New("malformed login response")
)

// StatusError is returned when an endpoint responds with anything other than 200.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// RateLimited reports whether the server answered with 429.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

const maxErrorBody = 256

func newStatusError(op string, status int, body []byte) *StatusError {
	text := string(body)
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return &StatusError{Op: op, StatusCode: status, Body: text}
}
