// Package worker runs workflows requested through workflow.triggered events.
package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/models"
)

// Runner is the part of the engine a worker drives.
type Runner interface {
	Run(ctx context.Context, workflowID string, data map[string]any, opts ...engine.RunOption) (*models.ExecutionResult, error)
	Fire(ctx context.Context, workflowID string, data map[string]any, opts ...engine.RunOption) (*models.ExecutionResult, error)
}

type Worker struct {
	id     string
	runner Runner
	bus    eventbus.EventSubscriber
	logger *slog.Logger
}

func New(id string, runner Runner, bus eventbus.EventSubscriber, logger *slog.Logger) *Worker {
	return &Worker{
		id:     id,
		runner: runner,
		bus:    bus,
		logger: logger.With("module", "worker", "worker_id", id),
	}
}

// Start registers the handler and starts consuming. It returns once subscribed; consumption
// stops when ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker subscriptions")

	err := w.bus.Handle(events.WorkflowTriggeredEvent, w.handleWorkflowTriggered)
	if err != nil {
		return err
	}

	err = w.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

// handleWorkflowTriggered only fails for malformed events. Run outcomes are recorded and published by
// the engine; expected rejections are logged.
func (w *Worker) handleWorkflowTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.WorkflowTriggered)
	if !ok {
		return errors.New("invalid event type for workflow.triggered")
	}

	logger := w.logger.With("workflow_id", triggered.WorkflowID, "event_id", triggered.ID)
	logger.InfoContext(ctx, "Processing workflow triggered event")

	data := triggered.TriggerData
	if data == nil {
		data = map[string]any{}
	}

	opts := []engine.RunOption{engine.WithActor(triggered.Actor)}
	if triggered.ScopeID != "" {
		opts = append(opts, engine.WithScope(triggered.ScopeID))
	}

	run := w.runner.Fire
	if triggered.SkipConditions {
		run = w.runner.Run
	}

	result, err := run(ctx, triggered.WorkflowID, data, opts...)

	switch {
	case err == nil:
		logger.InfoContext(ctx, "Workflow run finished", "execution_id", result.ExecutionID, "status", result.Status)
	case errors.Is(err, engine.ErrConditionsNotMet):
		logger.InfoContext(ctx, "Workflow conditions not met, skipping")
	case errors.Is(err, engine.ErrDefinitionNotFound),
		errors.Is(err, engine.ErrInvalidDefinition),
		errors.Is(err, engine.ErrConcurrencyLimitReached):
		logger.WarnContext(ctx, "Workflow run rejected", "error", err)
	default:
		logger.ErrorContext(ctx, "Workflow run failed", "error", err)
	}

	return nil
}
