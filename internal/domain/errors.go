package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument signals a malformed request.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStore signals a catalog store failure.
	ErrStore = errors.New("catalog store error")
	// ErrNotFound signals a missing catalog record.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable signals that the catalog is temporarily refusing calls.
	ErrUnavailable = errors.New("catalog unavailable")
)

// InvalidArgumentError wraps ErrInvalidArgument with a client-facing reason.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string { return e.Reason }

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// NewInvalidArgument creates an invalid argument error with the given reason.
func NewInvalidArgument(reason string) error {
	return &InvalidArgumentError{Reason: reason}
}

// StoreError wraps a catalog failure with the operation that caused it.
// It matches both ErrStore and the underlying cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStore.Error(), e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

// NewStoreError wraps err as a store failure for op. A nil err yields nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
