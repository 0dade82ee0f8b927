package protocol

import (
	"errors"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
)

// Error codes carried in result frames.
const (
	CodeNotFound         = "not-found"
	CodePermissionDenied = "permission-denied"
	CodeInvalid          = "invalid-argument"
	CodeUnauthenticated  = "unauthenticated"
	CodeInternal         = "internal"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Unwrap lets callers match the domain sentinel behind a code.
func (e *Error) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return domain.ErrNotFound
	case CodePermissionDenied:
		return domain.ErrPermissionDenied
	case CodeInvalid:
		return domain.ErrInvalid
	case CodeUnauthenticated:
		return domain.ErrAuthFailure
	}
	return nil
}

func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	code := CodeInternal
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, domain.ErrPermissionDenied):
		code = CodePermissionDenied
	case errors.Is(err, domain.ErrInvalid):
		code = CodeInvalid
	case errors.Is(err, domain.ErrAuthFailure):
		code = CodeUnauthenticated
	}
	return &Error{Code: code, Message: err.Error()}
}
