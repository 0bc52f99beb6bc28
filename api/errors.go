package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by the client. Backend failure statuses map to
// HTTP_ERROR_<status> unless the response body carries an explicit code.
const (
	CodeClientError  = "CLIENT_ERROR"
	CodeTimeout      = "TIMEOUT_ERROR"
	CodeUnknown      = "UNKNOWN_ERROR"
	CodeNetwork      = "NETWORK_ERROR"
	CodeDownload     = "DOWNLOAD_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
)

// HTTPCode builds the fallback code for a failure status.
func HTTPCode(status int) string {
	return fmt.Sprintf("HTTP_ERROR_%d", status)
}

// Error is the structured error every client operation fails with.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the error code, or empty for errors that did not come out
// of the client.
func CodeOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsUnauthorized reports whether the backend rejected the session token.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeUnauthorized ||
		apiErr.Code == HTTPCode(http.StatusUnauthorized) ||
		apiErr.Status == http.StatusUnauthorized
}

// Message extracts the display message of a client error, falling back to
// the plain error text.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// Normalize gives uncoded errors the supplied code. Errors that already
// carry a code pass through unchanged.
func Normalize(err error, code string) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Message: err.Error(), Code: code}
}
