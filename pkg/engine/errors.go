package engine

import (
	"errors"
	"fmt"
)

var (
	ErrDefinitionNotFound      = errors.New("workflow definition not found")
	ErrConditionsNotMet        = errors.New("workflow conditions not met")
	ErrConcurrencyLimitReached = errors.New("workflow concurrency limit reached")
	ErrExecutionCancelled      = errors.New("execution cancelled")
	ErrInvalidDefinition       = errors.New("invalid workflow definition")
)

// DefinitionNotFoundError is returned when the workflow is missing, inactive or outside
// the requested scope. No execution record exists for such a run.
type DefinitionNotFoundError struct {
	WorkflowID string
	Inactive   bool
}

func (e *DefinitionNotFoundError) Error() string {
	if e.Inactive {
		return fmt.Sprintf("workflow %s is not active", e.WorkflowID)
	}

	return fmt.Sprintf("workflow %s not found", e.WorkflowID)
}

func (e *DefinitionNotFoundError) Is(target error) bool {
	return target == ErrDefinitionNotFound
}

// InvalidDefinitionError is returned for a stored definition that cannot run, such as one
// without actions. No execution record is created.
type InvalidDefinitionError struct {
	WorkflowID string
	Reason     string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("workflow %s is invalid: %s", e.WorkflowID, e.Reason)
}

func (e *InvalidDefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

// UnknownActionError is recorded as the final outcome when no handler is registered for
// an action type.
type UnknownActionError struct {
	ActionType string
}

func (e *UnknownActionError) Error() string {
	return "unknown action type: " + e.ActionType
}

// ActionExecutionError wraps the error a handler returned for one action.
type ActionExecutionError struct {
	Index      int
	ActionType string
	Err        error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %d (%s) failed: %v", e.Index, e.ActionType, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}

// PanicError carries the value a handler panicked with.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("action panicked: %v", e.Value)
}

// ExecutionPanicError reports a panic raised outside a handler while a run was in progress. The record is finalized as failed before it is returned.
type ExecutionPanicError struct {
	ExecutionID string
	Value       any
}

func (e *ExecutionPanicError) Error() string {
	return fmt.Sprintf("execution %s panicked: %v", e.ExecutionID, e.Value)
}

// PersistenceError reports a failed recorder write. It ends the run.
type PersistenceError struct {
	Op          string
	ExecutionID string
	Err         error
}

func (e *PersistenceError) Error() string {
	if e.ExecutionID == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("persistence %s for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError

	return errors.As(err, &pe)
}
