package models

import "time"

// ExecutionStatus is the lifecycle state of an execution record.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSucceeded || s == ExecutionStatusFailed
}

// ActionOutcome is the recorded result of one executed action. Result is stored as JSON, so
// numbers in a persisted outcome read back as float64.
type ActionOutcome struct {
	Index      int            `json:"index"`
	ActionType string         `json:"action_type"`
	Success    bool           `json:"success"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// ExecutionRecord is the durable log of one run.
type ExecutionRecord struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	TriggerData map[string]any  `json:"trigger_data"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	// ExecutionTimeMs stays nil until the record is finalized.
	ExecutionTimeMs *int64          `json:"execution_time_ms,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	Outcomes        []ActionOutcome `json:"outcomes"`
}

// ExecutionResult is returned to the caller of a run.
type ExecutionResult struct {
	ExecutionID     string          `json:"execution_id"`
	WorkflowID      string          `json:"workflow_id"`
	Status          ExecutionStatus `json:"status"`
	Outcomes        []ActionOutcome `json:"outcomes"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// Succeeded reports whether every action of the run succeeded.
func (r *ExecutionResult) Succeeded() bool {
	return r.Status == ExecutionStatusSucceeded
}

// FailedOutcome returns the last failed outcome, if any.
func (r *ExecutionResult) FailedOutcome() (ActionOutcome, bool) {
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		if !r.Outcomes[i].Success {
			return r.Outcomes[i], true
		}
	}

	return ActionOutcome{}, false
}
