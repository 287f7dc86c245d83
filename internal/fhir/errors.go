package fhir

import (
	"fmt"
	"net/http"
)

// Kind classifies a FHIR server failure into the taxonomy from the
// filesystem's error handling design: each Kind maps to exactly one
// POSIX errno at the FUSE adapter boundary.
type Kind int

const (
	// KindUnavailable covers network failures, timeouts, and 5xx responses.
	KindUnavailable Kind = iota
	// KindNotFound covers 404s: unknown resource, unknown type, unknown id.
	KindNotFound
	// KindInvalid covers 400/422: malformed JSON, bad query, id/type mismatch.
	KindInvalid
	// KindForbidden covers 401/403.
	KindForbidden
	// KindConflict covers 409: version mismatch, create-when-exists.
	KindConflict
	// KindProtocol covers a response that doesn't parse as the FHIR shape
	// we expected (not a status-code failure, a payload-shape failure).
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindInvalid:
		return "invalid"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindProtocol:
		return "protocol"
	default:
		return "unavailable"
	}
}

// Error is the typed failure returned by every Client method. The FUSE
// adapter's mapError translates Kind to a syscall.Errno without needing to
// inspect StatusCode or Body itself.
type Error struct {
	Kind       Kind
	StatusCode int
	Method     string
	URL        string
	// Body is a short excerpt of the server's response body, kept on
	// status and protocol errors for diagnostics; Error() does not
	// include it.
	Body string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fhir: %s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fhir: %s %s: %s (HTTP %d)", e.Method, e.URL, e.Kind, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status code to a Kind, per the taxonomy in
// the error handling design. 2xx never reaches this function.
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return KindInvalid
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindForbidden
	case code == http.StatusConflict:
		return KindConflict
	default:
		return KindUnavailable
	}
}

func newStatusError(method, url string, code int, body string) *Error {
	return &Error{
		Kind:       classifyStatus(code),
		StatusCode: code,
		Method:     method,
		URL:        url,
		Body:       body,
	}
}

func newNetworkError(method, url string, err error) *Error {
	return &Error{Kind: KindUnavailable, Method: method, URL: url, Err: err}
}

func newProtocolError(method, url string, body string, err error) *Error {
	return &Error{Kind: KindProtocol, Method: method, URL: url, Body: body, Err: err}
}
