package models

import "time"

// Actor is the authenticated principal on whose behalf a run executes.
type Actor struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// TriggerContext is everything a handler may know about the run it is part of.
// Handlers must not read request or process state beyond this value.
type TriggerContext struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	ScopeID     string         `json:"scope_id"`
	Actor       Actor          `json:"actor"`
	Payload     map[string]any `json:"payload"`
	AIModel     string         `json:"ai_model,omitempty"`
	// Deadline bounds the current action. The same deadline is set on the
	// context passed to the handler.
	Deadline time.Time `json:"deadline"`
}

// TemplateData exposes the context to text templates used in action configs.
func (tc TriggerContext) TemplateData() map[string]any {
	return map[string]any{
		"trigger": tc.Payload,
		"actor": map[string]any{
			"id":    tc.Actor.ID,
			"name":  tc.Actor.Name,
			"email": tc.Actor.Email,
		},
		"scope_id":     tc.ScopeID,
		"workflow_id":  tc.WorkflowID,
		"execution_id": tc.ExecutionID,
	}
}
