package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the hub.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeConflict    = "CONFLICT"
	CodeState       = "STATE_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeRateLimited = "RATE_LIMITED"
)

// APIError represents an error returned by the API
type APIError struct {
	StatusCode int             `json:"-"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("API error: %s (status: %d)", e.Message, e.StatusCode)
}

func parseAPIError(status int, body []byte) *APIError {
	var wrapped struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Error.Code == "" {
		msg := string(body)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{StatusCode: status, Message: msg}
	}
	wrapped.Error.StatusCode = status
	return &wrapped.Error
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// IsNotFound reports whether err is a 404 from the hub.
func IsNotFound(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// IsConflict reports whether an equivalent action is already in flight.
func IsConflict(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == CodeConflict
}

// IsStateError reports whether a transition lost to a concurrent change.
func IsStateError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == CodeState
}

// IsValidation reports whether the request failed whitelist or input validation.
func IsValidation(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == CodeValidation
}

// IsUnauthorized reports whether the credentials were missing or rejected.
func IsUnauthorized(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}

// IsRateLimited reports whether the hub refused the call with 429.
func IsRateLimited(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.StatusCode == http.StatusTooManyRequests
}
