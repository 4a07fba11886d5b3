// Package gatewayerr defines the error taxonomy surfaced at the HTTP boundary.
package gatewayerr

import (
	"errors"
	"net/http"
)

// Kind is one of the fixed error categories in the external contract.
type Kind string

const (
	Unauthorized       Kind = "unauthorized"
	Forbidden          Kind = "forbidden"
	ValidationError    Kind = "validation_error"
	QuotaExceeded      Kind = "quota_exceeded"
	TooManyConcurrent  Kind = "too_many_concurrent"
	RateLimitExceeded  Kind = "rate_limit_exceeded"
	NoProviderAvail    Kind = "no_provider_available"
	ModelNotAllowed    Kind = "model_not_allowed"
	LLMError           Kind = "llm_error"
	InternalError      Kind = "internal_error"
	NotFound           Kind = "not_found"
)

var statusByKind = map[Kind]int{
	Unauthorized:      http.StatusUnauthorized,
	Forbidden:         http.StatusForbidden,
	ValidationError:   http.StatusBadRequest,
	QuotaExceeded:     http.StatusTooManyRequests,
	TooManyConcurrent: http.StatusTooManyRequests,
	RateLimitExceeded: http.StatusTooManyRequests,
	NoProviderAvail:   http.StatusServiceUnavailable,
	ModelNotAllowed:   http.StatusBadRequest,
	LLMError:          http.StatusBadGateway,
	InternalError:     http.StatusInternalServerError,
	NotFound:          http.StatusNotFound,
}

// Error is the request-local error type carried through the pipeline and
// converted to a JSON body at the HTTP boundary.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// HTTPStatus returns the response status code for this error's kind.
func (e *Error) HTTPStatus() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New constructs an Error with no extra fields.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithFields constructs an Error carrying additional response fields
// (e.g. limit/used/resets_at for quota_exceeded).
func WithFields(kind Kind, message string, fields map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Fields: fields}
}

// As reports whether err is (or wraps) a *Error, using the stdlib
// errors.As to walk the wrap chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
