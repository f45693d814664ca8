package airtable

import (
	"fmt"
	"net/http"
)

// TransportError reports a failed remote call: network failure, rejected
// credentials, rate limiting or any other non-success response.
type TransportError struct {
	Table      string
	StatusCode int
	Type       string
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error listing %q: %v", e.Table, e.Err)
	}
	msg := fmt.Sprintf("transport error listing %q: %d %s", e.Table, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Type != "" {
		msg += " (" + e.Type + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RateLimited is true when the service rejected the call with 429.
func (e *TransportError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Unauthorized is true when the credentials were rejected.
func (e *TransportError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
