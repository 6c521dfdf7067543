// Package zterr defines the error kinds surfaced by the decision core.
//
// Every error kind maps to a forced deny at the decision boundary: the
// core is fail-closed and never converts an internal fault into an allow.
package zterr

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError indicates an unknown identity, device, or segment.
type NotFoundError struct {
	Kind string // identity, device, segment
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NotFound creates a NotFoundError for the given record kind and id
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError indicates a missing or malformed context signal.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid signal %q: %s", e.Field, e.Reason)
}

// Validation creates a ValidationError for the given field
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// PolicyEvaluationError indicates an internal fault while scoring.
type PolicyEvaluationError struct {
	Component string
	Err       error
}

func (e *PolicyEvaluationError) Error() string {
	return fmt.Sprintf("policy evaluation failed in %s: %v", e.Component, e.Err)
}

func (e *PolicyEvaluationError) Unwrap() error { return e.Err }

// PolicyEvaluation wraps an internal scoring fault
func PolicyEvaluation(component string, err error) *PolicyEvaluationError {
	return &PolicyEvaluationError{Component: component, Err: err}
}

// TimeoutError indicates an external signal was unavailable within budget.
type TimeoutError struct {
	Signal string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("signal %q unavailable within %s", e.Signal, e.Budget)
}

// Timeout creates a TimeoutError for the given signal source
func Timeout(signal string, budget time.Duration) *TimeoutError {
	return &TimeoutError{Signal: signal, Budget: budget}
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsTimeout reports whether err is a TimeoutError
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}
