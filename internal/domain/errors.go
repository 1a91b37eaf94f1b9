package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrNotFound = errors.New("not found")
)

// ValidationError is returned when caller input is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when a pet or request id is unknown.
type NotFoundError struct {
	Kind RecordKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is lets callers match any NotFoundError with errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DuplicateRequestError is returned when an adopter already has a pending
// request for the pet.
type DuplicateRequestError struct {
	PetID     string
	AdopterID string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("adopter %q already has a pending request for pet %q", e.AdopterID, e.PetID)
}

// PetUnavailableError is returned when a pet is missing or already adopted.
type PetUnavailableError struct {
	PetID  string
	Status PetStatus
	Err    error
}

func (e *PetUnavailableError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("pet %q is not available for adoption", e.PetID)
	}
	return fmt.Sprintf("pet %q is not available for adoption (status %q)", e.PetID, e.Status)
}

func (e *PetUnavailableError) Unwrap() error { return e.Err }

// InvalidTransitionError is returned when a request state transition is not allowed.
type InvalidTransitionError struct {
	RequestID string
	Event     RequestEvent
	Current   RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
	}
	return fmt.Sprintf("request %q: event %q is not valid from state %q", e.RequestID, e.Event, e.Current)
}

// UnauthorizedError is returned when the caller does not own the pet.
type UnauthorizedError struct {
	PetID    string
	CallerID string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("caller %q may not decide requests for pet %q", e.CallerID, e.PetID)
}

// ConflictError is returned when concurrent writers kept invalidating the
// unit of work until the attempts ran out.
type ConflictError struct {
	PetID     string
	RequestID string
	Attempts  int
	Err       error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pet %q: concurrent modification after %d attempt(s)", e.PetID, e.Attempts)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// StorageError is a backend failure. Transient failures may succeed on retry.
type StorageError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *StorageError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("storage %s (%s): %v", e.Op, kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries a transient StorageError.
func IsTransient(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Transient
}
