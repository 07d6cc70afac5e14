package web

import "github.com/dukex/autoflow/pkg/models"

// TriggerRequest is the body of POST /workflows/:id/trigger.
type TriggerRequest struct {
	Data  map[string]any `json:"data"`
	Actor models.Actor   `json:"actor"`
	// ScopeID restricts the lookup to definitions of that scope.
	ScopeID string `json:"scope_id" validate:"omitempty,max=255"`
	// SkipConditions runs the workflow without evaluating its conditions.
	SkipConditions bool `json:"skip_conditions"`
}

// NotFiredResponse is returned when the workflow conditions rejected the payload.
type NotFiredResponse struct {
	Fired      bool   `json:"fired"`
	WorkflowID string `json:"workflow_id"`
}

// ExecutionListResponse wraps GET /workflows/:id/executions.
type ExecutionListResponse struct {
	WorkflowID string                    `json:"workflow_id"`
	Executions []*models.ExecutionRecord `json:"executions"`
	TotalCount int                       `json:"total_count"`
}

// QueuedResponse is returned for async triggers.
type QueuedResponse struct {
	Queued     bool   `json:"queued"`
	EventID    string `json:"event_id"`
	WorkflowID string `json:"workflow_id"`
}
