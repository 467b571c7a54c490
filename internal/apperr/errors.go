// Package apperr holds the error taxonomy shared by the stores, the order
// coordinator and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or missing request input. It is raised
// before any storage resource is acquired.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Invalid is a shorthand for &ValidationError{Field: field, Reason: reason}.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError means a conditional decrement matched nothing: the
// product is missing or has less stock than requested.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return "Insufficient stock or product not found for product ID: " + e.ProductID
}

// NotFoundError reports an absent resource, or one not owned by the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// PersistenceError wraps any other storage failure, connectivity included.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError unless it already carries a
// classified error, in which case it is returned untouched.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// TransientUpstreamError is a recoverable failure of a side collaborator
// (event broker, metrics sink, idempotency bookkeeping). It is logged and
// never blocks the owning mutation.
type TransientUpstreamError struct {
	Service string
	Err     error
}

func (e *TransientUpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Service, e.Err)
}

func (e *TransientUpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as a TransientUpstreamError.
func Upstream(service string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientUpstreamError{Service: service, Err: err}
}

// Classified reports whether err already belongs to the taxonomy.
func Classified(err error) bool {
	var (
		ve *ValidationError
		se *InsufficientStockError
		ne *NotFoundError
		pe *PersistenceError
		te *TransientUpstreamError
	)
	return errors.As(err, &ve) || errors.As(err, &se) || errors.As(err, &ne) ||
		errors.As(err, &pe) || errors.As(err, &te)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// InsufficientStock extracts the InsufficientStockError carried by err.
func InsufficientStock(err error) (*InsufficientStockError, bool) {
	var se *InsufficientStockError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
