package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the four caller-visible failure classes. Storage and
// cache faults are not part of this taxonomy; they propagate wrapped with %w
// from the layer that hit them.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrForbidden = errors.New("forbidden")
)

// NotFoundError indicates that an operation referenced a resource, group, or
// ACL chain that does not exist.
type NotFoundError struct {
	Kind string // "entity", "link", "group", "acl"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound builds a NotFoundError for the given kind and identifier.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ConflictError indicates that an operation would violate an invariant:
// duplicate group name, membership cycle, nesting depth exceeded, double
// delete, update-while-deleted, restore-while-not-deleted, or a lost
// conditional write on a version chain.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict builds a ConflictError with a formatted reason.
func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// ForbiddenError indicates the caller lacks the required permission. It
// deliberately carries no detail about whether the target exists.
type ForbiddenError struct {
	Permission string
}

func (e *ForbiddenError) Error() string {
	if e.Permission == "" {
		return "forbidden"
	}
	return "forbidden: " + e.Permission + " permission required"
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// Forbidden builds a ForbiddenError for the given permission.
func Forbidden(permission string) error {
	return &ForbiddenError{Permission: permission}
}

// ValidationError reports every invalid reference in a request, not just the
// first. It is returned as data by validation paths and as an error by the
// operations that refuse to proceed on invalid input.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// Validation builds a ValidationError from the collected messages.
func Validation(errs []string) error {
	return &ValidationError{Errors: errs}
}

// IsNotFound reports whether err is a not-found condition.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is an invariant violation.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsForbidden reports whether err is a permission denial.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsValidation reports whether err carries principal-validation failures.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
