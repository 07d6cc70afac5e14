package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionFinalized indicates a write to an execution record that is already terminal.
	ErrExecutionFinalized = errors.New("execution already finalized")

	// ErrInvalidStatus indicates a finalize call with a non-terminal status.
	ErrInvalidStatus = errors.New("invalid terminal status")
)

// ExecutionError wraps execution record errors with additional context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g., "CreateRunning", "Finalize")
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.ExecutionID == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for execution errors.
func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{Op: op, ExecutionID: executionID, Err: err}
}

// WorkflowError wraps workflow definition errors with additional context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution record was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsExecutionFinalized checks if an error indicates a write to a terminal record.
func IsExecutionFinalized(err error) bool {
	return errors.Is(err, ErrExecutionFinalized)
}
