package domain

import "errors"

// Stable error kinds. Operations wrap these with context via fmt.Errorf so
// callers can branch on errors.Is while still seeing a readable reason.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("role not permitted")
	ErrForbidden          = errors.New("access denied")
	ErrInvalidTransition  = errors.New("invalid intervention state transition")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidArgument    = errors.New("invalid argument")

	// ErrUpstream marks processor or store failures. It must stay
	// distinguishable from ErrPreconditionFailed: a lost claim race is
	// routine, an upstream outage is not.
	ErrUpstream = errors.New("upstream failure")
)
