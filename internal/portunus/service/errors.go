package service

import "errors"

var (
	// ErrInvalidRequest wraps every validation failure.  Nothing is recorded
	// for an invalid request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInfrastructure matches any *InfrastructureError via errors.Is.
	ErrInfrastructure = errors.New("infrastructure failure")

	ErrUserNotFound    = errors.New("user not found")
	ErrBenefitNotFound = errors.New("benefit not found")
	ErrBenefitInactive = errors.New("benefit is not active")
)

// InfrastructureError reports that a backing store failed on a path where
// the failure cannot be absorbed.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }
