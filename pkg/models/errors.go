package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the orchestrator. Typed errors below match these with errors.Is.
var (
	// ErrInvalidInput indicates malformed or out-of-range configuration or per-step input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStateViolation indicates a state transition left the physically valid range.
	ErrStateViolation = errors.New("state violation")

	// ErrExternalModel indicates the external simulator failed or returned inconsistent output.
	ErrExternalModel = errors.New("external model error")
)

// InvalidInputError describes a rejected input value
type InvalidInputError struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StateViolationError carries the last valid state alongside the offending field
type StateViolationError struct {
	Step  int
	Field string
	Value float64
	Min   float64
	Max   float64
	State OperatingState
}

func (e *StateViolationError) Error() string {
	return fmt.Sprintf("state violation at step %d: %s=%g outside [%g, %g]", e.Step, e.Field, e.Value, e.Min, e.Max)
}

func (e *StateViolationError) Is(target error) bool {
	return target == ErrStateViolation
}

// ExternalModelError wraps a simulator failure at a given timestep
type ExternalModelError struct {
	Step    int
	Err     error
	Partial *HorizonSummary
}

func (e *ExternalModelError) Error() string {
	return fmt.Sprintf("external model error at step %d: %v", e.Step, e.Err)
}

func (e *ExternalModelError) Is(target error) bool {
	return target == ErrExternalModel
}

func (e *ExternalModelError) Unwrap() error {
	return e.Err
}

// FailedStep extracts the timestep index carried by a domain error
func FailedStep(err error) (int, bool) {
	var sv *StateViolationError
	if errors.As(err, &sv) {
		return sv.Step, true
	}
	var em *ExternalModelError
	if errors.As(err, &em) {
		return em.Step, true
	}
	return 0, false
}
