package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrInvalidCredentials is deliberately generic: callers must not be able
	// to distinguish "no such account" from "wrong PIN".
	ErrInvalidCredentials = errors.New("incorrect identifier or PIN")
	ErrRateLimited        = errors.New("too many attempts")
	ErrInsufficientPoints = errors.New("insufficient points balance")
	ErrPINRequired        = errors.New("PIN verification required")
)

// LockoutError is returned when an (origin, identifier) pair is locked out
// after repeated credential failures. It carries the retry-after hint
// surfaced to the caller.
type LockoutError struct {
	MinutesRemaining int
}

func (e *LockoutError) Error() string {
	return "too many failed attempts, try again later"
}
