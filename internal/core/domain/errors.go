package domain

import (
	"errors"
	"fmt"
)

// User-visible failure kinds. Concrete errors wrap one of these.
var (
	ErrAuthFailure      = errors.New("authentication failed")
	ErrMediaAccess      = errors.New("media access error")
	ErrSignaling        = errors.New("signaling error")
	ErrPermissionDenied = errors.New("permission denied")
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalid        = errors.New("invalid argument")
	ErrCallInProgress = errors.New("a call is already in progress")
	ErrNoIncomingCall = errors.New("no incoming call")
	ErrNoActiveCall   = errors.New("no active call")
	ErrClosed         = errors.New("session closed")

	ErrNotAuthenticated = fmt.Errorf("%w: not logged in", ErrAuthFailure)
)

// Denied builds a PermissionDenied error for a role lacking a capability.
func Denied(role Role, c Capability) error {
	return fmt.Errorf("%w: role %q cannot %s", ErrPermissionDenied, role, c)
}
