package ndi

import (
	"errors"
	"fmt"
	"net"
)

// BodyNotAvailable is reported in place of a response body that could not be read.
const BodyNotAvailable = "not available"

// ErrInvalidBaseURL is returned when the controller URL is not an http(s) URL with a host.
var ErrInvalidBaseURL = errors.New("invalid controller URL: expected https://host[:port]")

// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// AuthenticationError is returned when the controller rejects the login request.
type AuthenticationError struct {
	// StatusCode is the HTTP status of the login response.
	StatusCode int

	// Body is the login response body, empty if it could not be read.
	Body string
}

// Error implements error.
func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("login failed with status %d", e.StatusCode)
}

// TransportError is returned when a request fails before a response is received.
type TransportError struct {
	// Op is the operation that failed ("login", "count", "fetch").
	Op string

	// URL is the request URL.
	URL string

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request to %s failed: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a connect or read timeout.
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// APIError is returned when a data request gets a non-2xx status or a body
// that cannot be decoded.
type APIError struct {
	// Op is the operation that failed ("count", "fetch").
	Op string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Body is the response body, empty if it could not be read.
	Body string

	// Err is the decode or read error, nil for a plain status failure.
	Err error
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request returned status %d", e.Op, e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ResponseBody returns the status code and response body carried by err.
// ok is false when err carries no response; body is BodyNotAvailable when the
// response had no readable body.
func ResponseBody(err error) (status int, body string, ok bool) {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.StatusCode, bodyOrPlaceholder(authErr.Body), true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, bodyOrPlaceholder(apiErr.Body), true
	}

	return 0, BodyNotAvailable, false
}

func bodyOrPlaceholder(body string) string {
	if body == "" {
		return BodyNotAvailable
	}
	return body
}
