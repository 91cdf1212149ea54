package combinedenergy

import (
	"fmt"
)

// APIError is satisfied by every error type returned by this package, so
// callers can fence off client failures from unrelated errors with a single
// errors.As check before switching on the concrete type.
type APIError interface {
	error
	apiError()
}

// TimeoutError indicates a request exceeded its deadline. Recoverable by
// retrying the call.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }
func (e *TimeoutError) apiError()     {}

// PermissionError indicates the service returned HTTP 401: the current
// credentials do not have access to the requested resource.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }
func (e *PermissionError) apiError()     {}

// ServerError indicates a non-2xx HTTP response other than 401.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("unexpected error: %d", e.StatusCode)
}
func (e *ServerError) apiError() {}

// TransportError indicates a connection-level failure (DNS, refused
// connection, broken response body) while communicating with the service.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}
func (e *TransportError) Unwrap() error { return e.Err }
func (e *TransportError) apiError()     {}

// AuthenticationError indicates the login endpoint reported a non-ok status.
// Message carries the server-supplied error text.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }
func (e *AuthenticationError) apiError()     {}

// InvalidArgumentError indicates the caller supplied an out-of-range value,
// such as a non-positive duration or sample interval.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string { return e.Message }
func (e *InvalidArgumentError) apiError()     {}
