// Package persistence provides the storage abstraction for workflow definitions and execution records.
package persistence

import (
	"context"

	"github.com/dukex/autoflow/pkg/models"
)

// WorkflowStore supplies workflow definitions to the engine.
type WorkflowStore interface {
	// WorkflowByID returns the definition with the given id. When scopeID is not empty the
	// definition must belong to that scope. A missing definition yields ErrWorkflowNotFound.
	WorkflowByID(ctx context.Context, id string, scopeID string) (*models.WorkflowDefinition, error)
}

// WorkflowRepository extends WorkflowStore with authoring operations.
type WorkflowRepository interface {
	WorkflowStore
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error
	Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// ExecutionRecorder is the durable log of runs. Records start as running, receive outcomes
// while actions execute and become immutable once finalized.
type ExecutionRecorder interface {
	CreateRunning(ctx context.Context, workflowID string, triggerData map[string]any) (string, error)
	AppendOutcome(ctx context.Context, executionID string, outcome models.ActionOutcome) error
	Finalize(ctx context.Context, executionID string, status models.ExecutionStatus, outcomes []models.ActionOutcome, executionTimeMs int64, errorMessage string) error
}

// ExecutionRepository extends ExecutionRecorder with read access.
type ExecutionRepository interface {
	ExecutionRecorder
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	// ExecutionsByWorkflow returns records newest first.
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error)
}

type Persistence interface {
	WorkflowRepository
	ExecutionRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
