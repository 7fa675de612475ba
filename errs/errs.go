// Package errs defines the error taxonomy shared by all game services.
// Handlers map kinds to HTTP statuses; callers use the kind to tell a lost
// race apart from invalid input or a wrong lifecycle phase.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// KindInternal is an unexpected storage or infrastructure failure.
	KindInternal Kind = iota
	// KindNotFound: game, invite, card or participant does not exist.
	KindNotFound
	// KindInvalidState: operation attempted in the wrong lifecycle phase.
	KindInvalidState
	// KindConflict: caller lost a first-writer-wins race.
	KindConflict
	// KindValidation: malformed or out-of-range input.
	KindValidation
	// KindExhausted: the draw pool is empty. A normal terminal condition.
	KindExhausted
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Exhaustedf(format string, args ...any) *Error {
	return &Error{Kind: KindExhausted, Message: fmt.Sprintf(format, args...)}
}

func Internalf(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps an error to the status code handlers should respond with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusConflict
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindExhausted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
