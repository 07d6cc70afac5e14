// Package models defines the core domain models for workflow automation runs.
package models

import "time"

// TriggerType identifies what kind of event starts a workflow.
type TriggerType string

const (
	TriggerTypeWebhook TriggerType = "webhook"
	TriggerTypeEvent   TriggerType = "event"
	TriggerTypeManual  TriggerType = "manual"
)

// ActionSpec is one declared step of a workflow. Config is free-form and
// validated by the handler when the action executes.
type ActionSpec struct {
	Type   string         `json:"type" yaml:"type" validate:"required"`
	Config map[string]any `json:"config" yaml:"config"`
}

// WorkflowDefinition is the authored template of a workflow. It is read-only
// to the engine; a loaded definition is never mutated during a run.
type WorkflowDefinition struct {
	ID            string          `json:"id" yaml:"id" validate:"required"`
	ScopeID       string          `json:"scope_id" yaml:"scope_id"`
	Name          string          `json:"name" yaml:"name"`
	TriggerType   TriggerType     `json:"trigger_type" yaml:"trigger_type" validate:"required"`
	TriggerConfig map[string]any  `json:"trigger_config,omitempty" yaml:"trigger_config,omitempty"`
	Actions       []ActionSpec    `json:"actions" yaml:"actions" validate:"required,min=1,dive"`
	Conditions    []ConditionSpec `json:"conditions,omitempty" yaml:"conditions,omitempty" validate:"dive"`
	FailFast      bool            `json:"fail_fast" yaml:"fail_fast"`
	AIModel       string          `json:"ai_model,omitempty" yaml:"ai_model,omitempty"`
	IsActive      bool            `json:"is_active" yaml:"is_active"`

	// MaxConcurrentRuns overrides the engine-wide limit for this workflow. Zero means use the engine default.
	MaxConcurrentRuns int `json:"max_concurrent_runs,omitempty" yaml:"max_concurrent_runs,omitempty" validate:"min=0"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}
