package domain

import "errors"

// Error kinds surfaced by ledger operations. Every precondition violation
// aborts the whole operation with no partial state change; callers classify
// with errors.Is.
var (
	// ErrUnauthorized is returned when the caller lacks the required role
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrNotFound is returned when a referenced charity or campaign does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrInactiveEntity is returned when a charity or campaign is disabled
	ErrInactiveEntity = errors.New("entity is inactive")

	// ErrExpired is returned when a campaign's deadline has passed
	ErrExpired = errors.New("campaign deadline has passed")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the available balance
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidArgument is returned for malformed input: empty strings,
	// non-positive amounts, out-of-range fees
	ErrInvalidArgument = errors.New("invalid argument")
)
