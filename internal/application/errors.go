package application

import (
	"errors"
	"fmt"

	"github.com/example/exam-timeline/internal/scheduler"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already in use.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrCapacityConflict is returned when a change would put a room over
	// capacity and the caller did not force it.
	ErrCapacityConflict = errors.New("application: capacity conflict")
	// ErrUnauthorized is returned when a request lacks a valid operator key.
	ErrUnauthorized = errors.New("application: unauthorized")
)

// CapacityConflictError lists the rooms that would be over capacity.
type CapacityConflictError struct {
	Conflicts []scheduler.CapacityConflict
}

func (e *CapacityConflictError) Error() string {
	if e == nil || len(e.Conflicts) == 0 {
		return ErrCapacityConflict.Error()
	}
	first := e.Conflicts[0]
	return fmt.Sprintf("%s: room %s needs %d of %d seats", ErrCapacityConflict, first.RoomID, first.ProjectedSeats, first.Capacity)
}

// Is makes errors.Is(err, ErrCapacityConflict) hold.
func (e *CapacityConflictError) Is(target error) bool {
	return target == ErrCapacityConflict
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
