package engine

import (
	"context"
	"time"

	"github.com/dukex/autoflow/pkg/models"
)

// RunInfo identifies a run to observers.
type RunInfo struct {
	ExecutionID string
	WorkflowID  string
	ScopeID     string
	TriggerData map[string]any
	StartedAt   time.Time
}

// Observer is told when a recorded run starts and when it ends. Observers run synchronously
// on the coordinator's goroutine and must not block; their failures never affect a run.
type Observer interface {
	ExecutionStarted(ctx context.Context, run RunInfo)
	ExecutionFinished(ctx context.Context, run RunInfo, result *models.ExecutionResult)
}
