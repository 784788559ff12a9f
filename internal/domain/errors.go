package domain

import "fmt"

// Error types for consistent error handling across the store and services.

// ErrNotFound indicates a record was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrOpenBlocked indicates the store could not be upgraded because another
// connection holds it.
type ErrOpenBlocked struct {
	Path string
	Err  error
}

func (e *ErrOpenBlocked) Error() string {
	return fmt.Sprintf("store open blocked [%s]: %v", e.Path, e.Err)
}

func (e *ErrOpenBlocked) Unwrap() error {
	return e.Err
}

// ErrOpenFailed indicates an underlying storage failure while opening.
type ErrOpenFailed struct {
	Path string
	Err  error
}

func (e *ErrOpenFailed) Error() string {
	return fmt.Sprintf("store open failed [%s]: %v", e.Path, e.Err)
}

func (e *ErrOpenFailed) Unwrap() error {
	return e.Err
}

// ErrDuplicateKey indicates an add on an id that already exists.
type ErrDuplicateKey struct {
	Collection Collection
	ID         string
}

func (e *ErrDuplicateKey) Error() string {
	return fmt.Sprintf("duplicate key in %s: %s", e.Collection, e.ID)
}

// ErrUnknownCollection indicates a collection name outside the schema.
type ErrUnknownCollection struct {
	Name string
}

func (e *ErrUnknownCollection) Error() string {
	return fmt.Sprintf("unknown collection: %s", e.Name)
}

// ErrInvalidSnapshot indicates a malformed backup file.
type ErrInvalidSnapshot struct {
	Reason string
	Err    error
}

func (e *ErrInvalidSnapshot) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid snapshot: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid snapshot: %s", e.Reason)
}

func (e *ErrInvalidSnapshot) Unwrap() error {
	return e.Err
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientFunds indicates not enough balance for the operation.
// The bill job treats it as a skip, never as a failure.
type ErrInsufficientFunds struct {
	AccountID string
	Available float64
	Required  float64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available=%.2f required=%.2f", e.AccountID, e.Available, e.Required)
}

// ErrJobsSuspended indicates the posting jobs were not run because recent
// runs kept failing.
type ErrJobsSuspended struct {
	Err error
}

func (e *ErrJobsSuspended) Error() string {
	return fmt.Sprintf("posting jobs suspended: %v", e.Err)
}

func (e *ErrJobsSuspended) Unwrap() error {
	return e.Err
}
