package service

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrOutOfStock     = errors.New("book is currently out of stock")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrUnavailable    = errors.New("feature not configured")
	ErrPartialFailure = errors.New("partial failure")

	errRevertSkipped = errors.New("revert skipped in legacy borrow mode")
)

// PartialFailureError reports a multi-document operation whose later write failed after an earlier one landed.
// Compensated tells whether the earlier write was reverted.
type PartialFailureError struct {
	Op              string
	BookID          primitive.ObjectID
	UserID          primitive.ObjectID
	Cause           error
	Compensated     bool
	CompensationErr error
}

func (e *PartialFailureError) Error() string {
	if e.Compensated {
		return fmt.Sprintf("%s: book %s reverted after failure: %v", e.Op, e.BookID.Hex(), e.Cause)
	}
	return fmt.Sprintf("%s: book %s left inconsistent (revert failed: %v): %v", e.Op, e.BookID.Hex(), e.CompensationErr, e.Cause)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Cause}
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}
