// Package apperr defines the closed error taxonomy shared across the
// service and its HTTP projection.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is one of the fixed error categories the system can return.
type Kind string

const (
	KindInput              Kind = "input_error"
	KindNotFound           Kind = "not_found"
	KindNotReady           Kind = "not_ready"
	KindProviderTransient  Kind = "provider_transient"
	KindProviderFatal      Kind = "provider_fatal"
	KindCorpusEmpty        Kind = "corpus_empty"
	KindStateCorrupt       Kind = "state_corrupt"
	KindJobTimeout         Kind = "job_timeout"
	KindInternal           Kind = "internal_error"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// category without string-matching messages.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the Kind of err, defaulting to KindInternal when err is
// not an *Error (or wraps one).
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to the status code used by the transport layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotReady:
		return http.StatusBadRequest
	case KindProviderTransient:
		return http.StatusInternalServerError
	case KindProviderFatal:
		return http.StatusBadGateway
	case KindCorpusEmpty:
		return http.StatusNotFound
	case KindStateCorrupt:
		return http.StatusInternalServerError
	case KindJobTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the standard JSON body returned for any error response.
type Envelope struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Kind      Kind        `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ToEnvelope projects err into the standard HTTP error envelope.
func ToEnvelope(err error) Envelope {
	kind := KindOf(err)
	return Envelope{
		Status:    HTTPStatus(kind),
		Message:   err.Error(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryable reports whether the transport/job layer should retry the
// call that produced err.
func IsRetryable(err error) bool {
	return KindOf(err) == KindProviderTransient
}
