package account

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput means an account was rejected before any state changed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidScore is returned for payment scores outside [0,100].
	ErrInvalidScore = fmt.Errorf("%w: payment score must be within [0,100]", ErrInvalidInput)

	// ErrNotFound means no account exists with the requested ID.
	ErrNotFound = errors.New("account not found")

	// ErrConcurrencyViolation means a store reported the uncontacted to
	// triggered transition twice for one account. Correct stores never do.
	ErrConcurrencyViolation = errors.New("concurrent status transition violated")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
