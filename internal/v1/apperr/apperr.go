// Package apperr defines the error kinds shared across the Aria backend and
// their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the HTTP boundary can map it deterministically
// to a status code without re-inspecting the underlying cause.
type Kind int

const (
	// KindInternalBug is the zero value; it never left unassigned on purpose.
	KindInternalBug Kind = iota
	KindAuthExpired
	KindAuthInvalid
	KindAuthCreation
	KindBadRequest
	KindNotFound
	KindUnauthorized
	KindStoreError
	KindMediaError
	KindShutdownInProgress
)

func (k Kind) String() string {
	switch k {
	case KindAuthExpired:
		return "AuthExpired"
	case KindAuthInvalid:
		return "AuthInvalid"
	case KindAuthCreation:
		return "AuthCreation"
	case KindBadRequest:
		return "BadRequest"
	case KindNotFound:
		return "NotFound"
	case KindUnauthorized:
		return "Unauthorized"
	case KindStoreError:
		return "StoreError"
	case KindMediaError:
		return "MediaError"
	case KindShutdownInProgress:
		return "ShutdownInProgress"
	default:
		return "InternalBug"
	}
}

// Error is a classified application error carrying a user-facing message and
// an optional wrapped cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind of err, defaulting to KindInternalBug for errors
// that were never classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternalBug
}

// HTTPStatus maps a Kind onto the status policy in the HTTP API spec: 400
// malformed token/body, 401 missing/expired/unauthorized, 404 missing
// resource, 500 internal.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindAuthExpired, KindUnauthorized:
		return http.StatusUnauthorized
	case KindAuthInvalid, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindShutdownInProgress:
		return http.StatusServiceUnavailable
	case KindAuthCreation, KindStoreError, KindMediaError, KindInternalBug:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// StatusFor maps any error (classified or not) directly onto the HTTP status
// the handler should return.
func StatusFor(err error) int {
	return HTTPStatus(KindOf(err))
}
