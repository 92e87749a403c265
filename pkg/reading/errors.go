package reading

import (
	"errors"
	"fmt"
	"net/http"
)

// NotFoundError is returned when the host answers 404 for a file, commit
// list or archive.
type NotFoundError struct {
	Message string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return e.Message
}

// NotModifiedError is returned when the caller's etag still matches what the
// host would return.
type NotModifiedError struct{}

// Error implements the error interface.
func (NotModifiedError) Error() string {
	return "not modified"
}

// NotAllowedError is returned when no configured integration handles a URL.
type NotAllowedError struct {
	URL string
}

// Error implements the error interface.
func (e NotAllowedError) Error() string {
	return fmt.Sprintf("reading from %q is not allowed; you may need to configure an integration for the target host", e.URL)
}

// TransportError wraps a network-level failure reaching the host.
type TransportError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e TransportError) Error() string {
	return fmt.Sprintf("unable to read %s, %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e TransportError) Unwrap() error {
	return e.Err
}

// UnexpectedResponseError is returned for any other non-2xx status, or a 2xx
// body that does not have the expected shape.
type UnexpectedResponseError struct {
	Message    string
	StatusCode int // 0 when the status was fine but the body was not
}

// Error implements the error interface.
func (e UnexpectedResponseError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

// IsNotModified reports whether err is or wraps a NotModifiedError.
func IsNotModified(err error) bool {
	var target NotModifiedError
	return errors.As(err, &target)
}

// IsNotAllowed reports whether err is or wraps a NotAllowedError.
func IsNotAllowed(err error) bool {
	var target NotAllowedError
	return errors.As(err, &target)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var target TransportError
	return errors.As(err, &target)
}

// IsUnexpectedResponse reports whether err is or wraps an UnexpectedResponseError.
func IsUnexpectedResponse(err error) bool {
	var target UnexpectedResponseError
	return errors.As(err, &target)
}

// statusError builds the NotFound or UnexpectedResponse error for a non-2xx
// status code.
func statusError(message string, code int) error {
	if code == http.StatusNotFound {
		return NotFoundError{Message: message}
	}
	return UnexpectedResponseError{Message: message, StatusCode: code}
}
