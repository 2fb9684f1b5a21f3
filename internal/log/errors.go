package log

import (
	"errors"
	"fmt"
)

// Code categorizes log errors so API layers can map them deterministically.
type Code string

const (
	// CodeEntityNotFound indicates an operation referenced an unregistered
	// entity id.
	CodeEntityNotFound Code = "ENTITY_NOT_FOUND"

	// CodeAlreadyExists indicates registration of an id already present.
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// CodeValidationRejected indicates the domain validator refused the
	// proposed commit. The error carries the validator's refusal.
	CodeValidationRejected Code = "VALIDATION_REJECTED"

	// CodeConcurrencyConflict indicates the head advanced between
	// validation and the durable write. Callers retry the whole
	// validate-then-append cycle from fresh state.
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
)

// Error is a structured log error with a stable code.
type Error struct {
	Code     Code
	EntityID string
	Message  string

	// Refusal is set for CodeValidationRejected.
	Refusal *Refusal

	// Details carries additional context for diagnostics.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Refusal != nil {
		return fmt.Sprintf("%s: %s (entity=%s, reason=%s)", e.Code, e.Message, e.EntityID, e.Refusal.Reason)
	}
	if e.EntityID != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.EntityID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Refusal is a validator's structured rejection record. Refusals are
// log-worthy but are never appended to the commit log.
type Refusal struct {
	// ID uniquely identifies this refusal for diagnostics correlation.
	ID string
	// Reason is the stable rejection code (e.g. "BoundaryRequired").
	Reason string
	// Message is a human-readable description.
	Message string
	// Context carries structured details (offending field values etc.).
	Context map[string]string
}

// NewNotFoundError creates an Error for an unregistered entity.
func NewNotFoundError(entityID string) *Error {
	return &Error{
		Code:     CodeEntityNotFound,
		EntityID: entityID,
		Message:  "entity is not registered",
	}
}

// NewAlreadyExistsError creates an Error for a duplicate registration.
func NewAlreadyExistsError(entityID string) *Error {
	return &Error{
		Code:     CodeAlreadyExists,
		EntityID: entityID,
		Message:  "entity id is already registered",
	}
}

// NewRejectedError wraps a validator refusal.
func NewRejectedError(entityID string, refusal *Refusal) *Error {
	return &Error{
		Code:     CodeValidationRejected,
		EntityID: entityID,
		Message:  refusal.Message,
		Refusal:  refusal,
	}
}

// NewConflictError creates an Error for a lost head race.
func NewConflictError(entityID string, expected, actual uint64) *Error {
	return &Error{
		Code:     CodeConcurrencyConflict,
		EntityID: entityID,
		Message:  "head index changed between validation and write",
		Details: map[string]string{
			"expected_head": fmt.Sprintf("%d", expected),
			"actual_head":   fmt.Sprintf("%d", actual),
		},
	}
}

// IsNotFound reports whether err is a CodeEntityNotFound error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, CodeEntityNotFound)
}

// IsAlreadyExists reports whether err is a CodeAlreadyExists error.
func IsAlreadyExists(err error) bool {
	return hasCode(err, CodeAlreadyExists)
}

// IsRejected reports whether err is a CodeValidationRejected error.
func IsRejected(err error) bool {
	return hasCode(err, CodeValidationRejected)
}

// IsConflict reports whether err is a CodeConcurrencyConflict error.
func IsConflict(err error) bool {
	return hasCode(err, CodeConcurrencyConflict)
}

// RefusalFrom extracts the refusal from a validation-rejected error.
func RefusalFrom(err error) (*Refusal, bool) {
	var le *Error
	if errors.As(err, &le) && le.Refusal != nil {
		return le.Refusal, true
	}
	return nil, false
}

func hasCode(err error, code Code) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}
