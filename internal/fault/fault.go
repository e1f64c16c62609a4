// Package fault defines the error taxonomy shared by the API surface
// and the components behind it, plus its HTTP status mapping.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for API consumers.
type Kind int

const (
	// Unknown is any error not produced through this package.
	Unknown Kind = iota
	// NotReady means the WhatsApp session is not in Ready state.
	NotReady
	// InvalidInput means a malformed request body or parameter.
	InvalidInput
	// UpstreamTimeout means a call into the WhatsApp session exceeded its deadline.
	UpstreamTimeout
	// UpstreamFailure means the WhatsApp session rejected or errored.
	UpstreamFailure
	// NotFound means the requested resource is absent.
	NotFound
)

// Error carries a kind and a human-readable message.
type Error struct {
	Kind  Kind
	Msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the kind from an error chain. Unknown if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// HTTPStatus maps a kind to its response status code. Unknown and
// upstream failures surface as 500 with the cause message in the body.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotReady:
		return http.StatusServiceUnavailable
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
