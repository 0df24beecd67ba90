package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrNotFound is returned when an entry does not exist
	ErrNotFound = errors.New("entry not found")

	// ErrDuplicateID is returned when inserting an entry whose id is already stored
	ErrDuplicateID = errors.New("duplicate entry id")

	// ErrSerialization is returned when stored data cannot be decoded
	ErrSerialization = errors.New("corrupt stored data")

	// ErrInvalidQuery is returned when a filter cannot be parsed or evaluated
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIO is returned on a storage backend failure
	ErrIO = errors.New("storage failure")

	// ErrStoreClosed is returned when using a closed store
	ErrStoreClosed = errors.New("store is closed")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("contextdb: %v", e.Err)
	}
	return fmt.Sprintf("contextdb: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapError wraps an error with operation context
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
