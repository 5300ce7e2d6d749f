package anthropic

import (
	"fmt"
	"time"
)

// APIError is a non-2xx response from the Messages API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("status %d", e.StatusCode)
	if e.Type != "" {
		msg += " " + e.Type
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string { return "authentication failed: " + e.APIError.Error() }
func (e *AuthError) Unwrap() error { return e.APIError }

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return "rate limited: " + e.APIError.Error()
}
func (e *RateLimitError) Unwrap() error { return e.APIError }

// BadRequestError indicates a request the API rejected as invalid (400, 404, 413, 422).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return "bad request: " + e.APIError.Error() }
func (e *BadRequestError) Unwrap() error { return e.APIError }

// ServerError indicates 5xx errors, including 529 overloaded.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return "provider error: " + e.APIError.Error() }
func (e *ServerError) Unwrap() error { return e.APIError }
