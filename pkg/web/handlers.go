// Package web provides the HTTP API for triggering workflows and reading execution records.
package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/registry"
)

// Runner starts workflow runs. *engine.Coordinator implements it.
type Runner interface {
	Run(ctx context.Context, workflowID string, data map[string]any, opts ...engine.RunOption) (*models.ExecutionResult, error)
	Fire(ctx context.Context, workflowID string, data map[string]any, opts ...engine.RunOption) (*models.ExecutionResult, error)
}

type APIHandlers struct {
	runner      Runner
	persistence persistence.Persistence
	registry    *registry.Registry
	validator   *validator.Validate
	// publisher queues async triggers for workers. Nil disables ?async=true.
	publisher eventbus.EventPublisher
}

func NewAPIHandlers(
	runner Runner,
	persistence persistence.Persistence,
	registry *registry.Registry,
	validator *validator.Validate,
	publisher eventbus.EventPublisher,
) *APIHandlers {
	return &APIHandlers{
		runner:      runner,
		persistence: persistence,
		registry:    registry,
		validator:   validator,
		publisher:   publisher,
	}
}

// TriggerWorkflow runs the workflow synchronously and returns its result. A failed run is
// still a 200: the failure is part of the result. With ?async=true the request is queued as a
// workflow.triggered event instead and answered with 202.
func (h *APIHandlers) TriggerWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req TriggerRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		return h.enqueue(c, id, req)
	}

	opts := []engine.RunOption{engine.WithActor(req.Actor), engine.WithScope(req.ScopeID)}

	run := h.runner.Fire
	if req.SkipConditions {
		run = h.runner.Run
	}

	result, err := run(c.Context(), id, req.Data, opts...)
	if errors.Is(err, engine.ErrConditionsNotMet) {
		return c.JSON(NotFiredResponse{Fired: false, WorkflowID: id})
	}

	if err != nil {
		return handleRunError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) enqueue(c fiber.Ctx, id string, req TriggerRequest) error {
	if h.publisher == nil {
		return problem(c, fiber.StatusNotImplemented, "async_unavailable", "no event bus configured")
	}

	event := events.NewWorkflowTriggered(id, req.Data, req.Actor)
	event.ScopeID = req.ScopeID
	event.SkipConditions = req.SkipConditions

	if err := h.publisher.Publish(c.Context(), id, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(QueuedResponse{
		Queued:     true,
		EventID:    event.ID,
		WorkflowID: id,
	})
}

func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	var def models.WorkflowDefinition
	if err := c.Bind().JSON(&def); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.registry.ValidateDefinition(&def); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.persistence.SaveWorkflow(c.Context(), &def); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.persistence.WorkflowByID(c.Context(), c.Params("id"), c.Query("scope_id"))
	if err != nil {
		return handleRunError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")

	executions, err := h.persistence.ExecutionsByWorkflow(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	if executions == nil {
		executions = []*models.ExecutionRecord{}
	}

	return c.JSON(ExecutionListResponse{
		WorkflowID: id,
		Executions: executions,
		TotalCount: len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	record, err := h.persistence.ExecutionByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleRunError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) GetActions(c fiber.Ctx) error {
	return c.JSON(h.registry.Describe())
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"registry":   fiber.Map{"actions": len(h.registry.Types())},
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Routes mounts every handler on app.
func (h *APIHandlers) Routes(app *fiber.App) {
	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.SaveWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Post("/:id/trigger", h.TriggerWorkflow)
	w.Get("/:id/executions", h.GetWorkflowExecutions)

	app.Get("/executions/:id", h.GetExecution)
	app.Get("/actions", h.GetActions)
	app.Get("/health", h.HealthCheck)
}
