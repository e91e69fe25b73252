package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable indicates that the article store or database is unreachable.
	// An evaluation pass that hits this error aborts without partial writes.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEvaluationInProgress indicates that another evaluation pass already
	// holds the per-rule lock. Callers should retry later.
	ErrEvaluationInProgress = errors.New("evaluation already in progress")

	// ErrInternalError indicates an internal server error.
	ErrInternalError = errors.New("internal error")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// CriterionError reports a malformed criterion in a rule create or update
// payload. Index is the position of the offending criterion in the submitted
// list.
type CriterionError struct {
	Index   int
	Field   string
	Message string
}

// Error implements the error interface.
func (e *CriterionError) Error() string {
	return fmt.Sprintf("criterion %d: %s: %s", e.Index, e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *CriterionError) Unwrap() error {
	return ErrInvalidInput
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Entity: entity, ID: id}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewCriterionError creates a new CriterionError.
func NewCriterionError(index int, field, message string) *CriterionError {
	return &CriterionError{Index: index, Field: field, Message: message}
}
