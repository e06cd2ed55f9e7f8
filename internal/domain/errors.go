package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound        = errors.New("domain: not found")
	ErrConflict        = errors.New("domain: version conflict")
	ErrInvalidDuration = errors.New("domain: invalid duration")
	ErrNoAssignable    = errors.New("domain: no assignable users")
	ErrInvalidInput    = errors.New("domain: invalid input")
)
