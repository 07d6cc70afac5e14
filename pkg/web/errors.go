package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/persistence"
)

func problem(c fiber.Ctx, status int, problemType, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	return problem(c, fiber.StatusNotFound, problemType, detail)
}

func internalError(c fiber.Ctx, err error) error {
	p := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(p)
}

// handleRunError maps engine and persistence errors onto problem responses.
func handleRunError(c fiber.Ctx, err error) error {
	switch {
	case engine.IsDefinitionNotFound(err), persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow_not_found", err.Error())

	case errors.Is(err, engine.ErrInvalidDefinition):
		return problem(c, fiber.StatusUnprocessableEntity, "invalid_workflow", err.Error())

	case errors.Is(err, engine.ErrConcurrencyLimitReached):
		return problem(c, fiber.StatusConflict, "concurrency_limit_reached", err.Error())

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution_not_found", "execution not found")

	default:
		return internalError(c, err)
	}
}
