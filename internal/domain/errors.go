package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing user record.
	ErrNotFound = errors.New("not found")
	// ErrLimitReached signals an exhausted daily allowance.
	ErrLimitReached = errors.New("daily limit reached")
	// ErrInvalidReferral signals a self-referral or an unknown referrer.
	ErrInvalidReferral = errors.New("invalid referral")
	// ErrInvalidUserID signals a non-positive user identifier.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrStoreUnavailable signals a persistence failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConflict signals a lost compare-and-set race after all retries.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrCompletionFailed signals a completion provider failure.
	ErrCompletionFailed = errors.New("completion provider error")
)

// StoreError wraps ErrStoreUnavailable with the failed operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStoreUnavailable.Error(), e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *StoreError) Unwrap() []error { return []error{ErrStoreUnavailable, e.Err} }

// NewStoreError creates a store failure error for op.
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
