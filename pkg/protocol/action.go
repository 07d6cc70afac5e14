// Package protocol defines the contracts between the execution engine and action handlers.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/autoflow/pkg/models"
)

// ActionHandler performs one type of workflow step.
//
// Execute receives the action's raw config and the run's TriggerContext. Handlers must
// honour ctx cancellation and must not read any state beyond their arguments.
type ActionHandler interface {
	Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error)
}

// SchemaProvider is implemented by handlers that describe their config as a JSON schema.
type SchemaProvider interface {
	Schema() map[string]any
}

// Describer is implemented by handlers that expose a human readable name and description.
type Describer interface {
	Name() string
	Description() string
}

// HandlerFunc adapts a plain function to ActionHandler.
type HandlerFunc func(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error)

func (f HandlerFunc) Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error) {
	return f(ctx, config, tc, logger)
}

// TypedHandler is an ActionHandler that names its own action type. Handler plugins export one
// under the symbol "Handler".
type TypedHandler interface {
	ActionHandler
	Type() string
}
