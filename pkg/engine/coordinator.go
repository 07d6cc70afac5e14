// Package engine runs workflow definitions: it records each run, dispatches the actions in
// declared order through the registry and finalizes the execution record on every exit path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/autoflow/pkg/conditions"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/otelhelper"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/protocol"
)

// HandlerLookup resolves action types to handlers.
type HandlerLookup interface {
	Lookup(actionType string) (protocol.ActionHandler, bool)
}

// Coordinator executes runs. Runs are sequential internally; separate runs may execute
// concurrently, bounded per workflow by the configured limit.
type Coordinator struct {
	workflows persistence.WorkflowStore
	recorder  persistence.ExecutionRecorder
	handlers  HandlerLookup
	evaluator *conditions.Evaluator
	limiter   *Limiter
	observers []Observer
	tracer    trace.Tracer
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

func New(
	workflows persistence.WorkflowStore,
	recorder persistence.ExecutionRecorder,
	handlers HandlerLookup,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		workflows: workflows,
		recorder:  recorder,
		handlers:  handlers,
		evaluator: conditions.New(),
		limiter:   NewLimiter(),
		tracer:    noop.NewTracerProvider().Tracer("autoflow/engine"),
		logger:    logger.With("module", "engine"),
		cfg:       Config{ActionTimeout: DefaultActionTimeout},
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes the workflow unconditionally. A missing or inactive definition yields a
// DefinitionNotFoundError and no record. Any recorder failure is returned as a
// *PersistenceError after one best-effort attempt to finalize the record as failed.
func (c *Coordinator) Run(ctx context.Context, workflowID string, data map[string]any, opts ...RunOption) (*models.ExecutionResult, error) {
	ro := applyRunOptions(opts)

	def, err := c.load(ctx, workflowID, ro.scopeID)
	if err != nil {
		return nil, err
	}

	return c.execute(ctx, def, data, ro)
}

// Fire evaluates the workflow's conditions against data and runs it only when they hold.
// Otherwise it returns ErrConditionsNotMet without creating a record.
func (c *Coordinator) Fire(ctx context.Context, workflowID string, data map[string]any, opts ...RunOption) (*models.ExecutionResult, error) {
	ro := applyRunOptions(opts)

	def, err := c.load(ctx, workflowID, ro.scopeID)
	if err != nil {
		return nil, err
	}

	if !c.evaluator.Evaluate(def.Conditions, data) {
		c.logger.InfoContext(ctx, "Workflow conditions not met", "workflow_id", def.ID)

		return nil, fmt.Errorf("workflow %s: %w", def.ID, ErrConditionsNotMet)
	}

	return c.execute(ctx, def, data, ro)
}

func applyRunOptions(opts []RunOption) runOptions {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	return ro
}

func (c *Coordinator) load(ctx context.Context, workflowID, scopeID string) (*models.WorkflowDefinition, error) {
	def, err := c.workflows.WorkflowByID(ctx, workflowID, scopeID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, &DefinitionNotFoundError{WorkflowID: workflowID}
		}

		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if def == nil {
		return nil, &DefinitionNotFoundError{WorkflowID: workflowID}
	}

	if !def.IsActive {
		return nil, &DefinitionNotFoundError{WorkflowID: workflowID, Inactive: true}
	}

	if len(def.Actions) == 0 {
		return nil, &InvalidDefinitionError{WorkflowID: workflowID, Reason: "no actions"}
	}

	return def, nil
}

func (c *Coordinator) concurrencyLimit(def *models.WorkflowDefinition) int {
	if def.MaxConcurrentRuns > 0 {
		return def.MaxConcurrentRuns
	}

	return c.cfg.MaxConcurrentRuns
}

func (c *Coordinator) execute(
	ctx context.Context,
	def *models.WorkflowDefinition,
	data map[string]any,
	ro runOptions,
) (_ *models.ExecutionResult, err error) {
	release, ok := c.limiter.TryAcquire(def.ID, c.concurrencyLimit(def))
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", def.ID, ErrConcurrencyLimitReached)
	}
	defer release()

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, def.ID),
		attribute.String(otelhelper.ScopeIDKey, def.ScopeID),
		attribute.Int(otelhelper.ActionCountKey, len(def.Actions)),
	)
	defer span.End()

	logger := c.logger.With("workflow_id", def.ID)

	// Recorder writes must land even when the caller gives up mid-run.
	persistCtx := context.WithoutCancel(ctx)

	executionID, err := c.recorder.CreateRunning(persistCtx, def.ID, data)
	if err != nil {
		perr := &PersistenceError{Op: "create_running", Err: err}
		otelhelper.SetError(span, perr)
		logger.ErrorContext(ctx, "Failed to create execution record", "error", err)

		return nil, perr
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, executionID))
	logger = logger.With("execution_id", executionID)

	run := RunInfo{
		ExecutionID: executionID,
		WorkflowID:  def.ID,
		ScopeID:     def.ScopeID,
		TriggerData: data,
		StartedAt:   c.now(),
	}

	state := &runState{outcomes: make([]models.ActionOutcome, 0, len(def.Actions))}
	finalized := false

	// A panic in the engine or the recorder must not leave the record running.
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		perr := &ExecutionPanicError{ExecutionID: executionID, Value: r}
		if !finalized {
			elapsed := max(c.now().Sub(run.StartedAt).Milliseconds(), 0)
			c.finalizeBestEffort(persistCtx, logger, executionID, state.outcomes, elapsed, perr.Error())
		}

		otelhelper.SetError(span, perr)
		logger.ErrorContext(ctx, "Execution panicked", "panic", r)

		err = perr
	}()

	c.notify(logger, func(o Observer) { o.ExecutionStarted(persistCtx, run) })

	logger.InfoContext(ctx, "Execution started", "actions", len(def.Actions), "fail_fast", def.FailFast)

	tc := models.TriggerContext{
		ExecutionID: executionID,
		WorkflowID:  def.ID,
		ScopeID:     def.ScopeID,
		Actor:       ro.actor,
		Payload:     data,
		AIModel:     def.AIModel,
	}

	c.runActions(ctx, persistCtx, def, tc, logger, state)
	outcomes, lastErr, sysErr := state.outcomes, state.lastErr, state.sysErr

	elapsed := max(c.now().Sub(run.StartedAt).Milliseconds(), 0)

	status := models.ExecutionStatusSucceeded
	if sysErr != nil || lastErr != nil {
		status = models.ExecutionStatusFailed
	}

	errorMessage := ""

	switch {
	case sysErr != nil:
		errorMessage = sysErr.Error()
	case lastErr != nil:
		errorMessage = lastErr.Error()
	}

	if sysErr == nil {
		err = c.recorder.Finalize(persistCtx, executionID, status, outcomes, elapsed, errorMessage)
		if err != nil {
			sysErr = &PersistenceError{Op: "finalize", ExecutionID: executionID, Err: err}
			status = models.ExecutionStatusFailed
			errorMessage = sysErr.Error()
		}
	}

	if sysErr != nil {
		c.finalizeBestEffort(persistCtx, logger, executionID, outcomes, elapsed, errorMessage)
	}

	finalized = true

	result := &models.ExecutionResult{
		ExecutionID:     executionID,
		WorkflowID:      def.ID,
		Status:          status,
		Outcomes:        outcomes,
		ExecutionTimeMs: elapsed,
		ErrorMessage:    errorMessage,
	}

	c.notify(logger, func(o Observer) { o.ExecutionFinished(persistCtx, run, result) })

	span.SetAttributes(attribute.String(otelhelper.StatusKey, string(status)))

	if sysErr != nil {
		otelhelper.SetError(span, sysErr)
		logger.ErrorContext(ctx, "Execution aborted", "error", sysErr, "duration_ms", elapsed)

		return nil, sysErr
	}

	if status == models.ExecutionStatusFailed {
		otelhelper.SetError(span, lastErr)
		logger.WarnContext(ctx, "Execution failed", "error", errorMessage, "outcomes", len(outcomes), "duration_ms", elapsed)
	} else {
		logger.InfoContext(ctx, "Execution succeeded", "outcomes", len(outcomes), "duration_ms", elapsed)
	}

	return result, nil
}

type runState struct {
	outcomes []models.ActionOutcome
	// lastErr is the error of the last failed action.
	lastErr error
	// sysErr is a recorder failure that aborted the run.
	sysErr error
}

func (c *Coordinator) runActions(
	ctx, persistCtx context.Context,
	def *models.WorkflowDefinition,
	tc models.TriggerContext,
	logger *slog.Logger,
	state *runState,
) {
	for i, spec := range def.Actions {
		var (
			outcome models.ActionOutcome
			fatal   bool
			err     error
		)

		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ErrExecutionCancelled, ctxErr)
			outcome = models.ActionOutcome{Index: i, ActionType: spec.Type, Error: err.Error()}
			fatal = true
		} else {
			outcome, fatal, err = c.runAction(ctx, i, spec, tc, logger)
		}

		state.outcomes = append(state.outcomes, outcome)

		if err != nil {
			state.lastErr = err
		}

		appendErr := c.recorder.AppendOutcome(persistCtx, tc.ExecutionID, outcome)
		if appendErr != nil {
			state.sysErr = &PersistenceError{Op: "append_outcome", ExecutionID: tc.ExecutionID, Err: appendErr}

			return
		}

		if err != nil && (fatal || def.FailFast) {
			return
		}
	}
}

func (c *Coordinator) runAction(
	ctx context.Context,
	index int,
	spec models.ActionSpec,
	tc models.TriggerContext,
	logger *slog.Logger,
) (models.ActionOutcome, bool, error) {
	outcome := models.ActionOutcome{Index: index, ActionType: spec.Type}
	logger = logger.With("action_type", spec.Type, "action_index", index)

	handler, ok := c.handlers.Lookup(spec.Type)
	if !ok {
		err := &UnknownActionError{ActionType: spec.Type}
		outcome.Error = err.Error()
		logger.ErrorContext(ctx, "Unknown action type")

		return outcome, true, err
	}

	actionCtx, cancel := context.WithTimeout(ctx, c.cfg.ActionTimeout)
	defer cancel()

	tc.Deadline, _ = actionCtx.Deadline()

	actionCtx, span := otelhelper.StartSpan(actionCtx, c.tracer, "workflow.action",
		attribute.String(otelhelper.ActionTypeKey, spec.Type),
		attribute.Int(otelhelper.ActionIndexKey, index),
	)
	defer span.End()

	start := c.now()
	result, err := invoke(actionCtx, handler, spec.Config, tc, logger)
	outcome.DurationMs = max(c.now().Sub(start).Milliseconds(), 0)

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		outcome.Error = panicErr.Error()
		otelhelper.SetError(span, panicErr)
		logger.ErrorContext(ctx, "Action panicked", "panic", panicErr.Value)

		return outcome, true, &ActionExecutionError{Index: index, ActionType: spec.Type, Err: panicErr}
	}

	if err != nil {
		outcome.Error = err.Error()
		otelhelper.SetError(span, err)
		logger.WarnContext(ctx, "Action failed", "error", err, "duration_ms", outcome.DurationMs)

		return outcome, false, &ActionExecutionError{Index: index, ActionType: spec.Type, Err: err}
	}

	outcome.Success = true
	outcome.Result = result
	logger.InfoContext(ctx, "Action succeeded", "duration_ms", outcome.DurationMs)

	return outcome, false, nil
}

func invoke(
	ctx context.Context,
	handler protocol.ActionHandler,
	config map[string]any,
	tc models.TriggerContext,
	logger *slog.Logger,
) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r}
		}
	}()

	return handler.Execute(ctx, config, tc, logger)
}

// notify calls fn for every observer. A panicking observer is logged and skipped.
func (c *Coordinator) notify(logger *slog.Logger, fn func(Observer)) {
	for _, o := range c.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Observer panicked", "observer", fmt.Sprintf("%T", o), "panic", r)
				}
			}()

			fn(o)
		}()
	}
}

func (c *Coordinator) finalizeBestEffort(
	ctx context.Context,
	logger *slog.Logger,
	executionID string,
	outcomes []models.ActionOutcome,
	elapsed int64,
	errorMessage string,
) {
	err := c.recorder.Finalize(ctx, executionID, models.ExecutionStatusFailed, outcomes, elapsed, errorMessage)
	if err != nil {
		logger.ErrorContext(ctx, "Best-effort finalize failed", "error", err)
	}
}
