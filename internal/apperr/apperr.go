package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the HTTP layer can pick a status code
// without looking at error text.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindValidation
	KindUpstream
	KindExhausted
	KindResponseShape
	KindExtraction
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config_error"
	case KindValidation:
		return "validation_error"
	case KindUpstream:
		return "upstream_error"
	case KindExhausted:
		return "retries_exhausted"
	case KindResponseShape:
		return "malformed_response"
	case KindExtraction:
		return "extraction_error"
	default:
		return "internal_error"
	}
}

var (
	ErrConfig        = &Error{Kind: KindConfig}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrUpstream      = &Error{Kind: KindUpstream}
	ErrExhausted     = &Error{Kind: KindExhausted}
	ErrResponseShape = &Error{Kind: KindResponseShape}
	ErrExtraction    = &Error{Kind: KindExtraction}
)

// Error is the tagged error returned by every operation. Status is only
// set for upstream errors and holds the status code the remote API sent.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so errors.Is(err, ErrExhausted)
// works regardless of message or status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Upstream(status int, message string) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: message}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the status code returned to the frontend.
// Permanent upstream errors pass the remote status through.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Error interno del servidor."
}
