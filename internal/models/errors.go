package models

import (
	"errors"
	"fmt"
)

// ErrNotOwner is returned when a caller attempts a seller-only operation
// (confirm, reject, delete) on a listing they do not own.
var ErrNotOwner = errors.New("listing does not belong to the caller")

// ValidationError reports malformed or missing input. It is always raised
// before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing User/Listing/Transaction reference.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvalidStateError reports a lifecycle operation attempted from a state
// that does not allow it. Status carries the listing's current status.
type InvalidStateError struct {
	Operation string
	Status    ListingStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a listing in status %q", e.Operation, e.Status)
}

// ConflictError reports a uniqueness violation that the identity resolver's
// re-lookup could not resolve, or an operation blocked by existing records.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// DependencyError wraps a storage collaborator failure during a mutating
// operation. Notification failures are never wrapped in this; they are
// logged and swallowed.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
