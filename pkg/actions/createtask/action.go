// Package createtask provides the create_task action.
package createtask

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/records"
	"github.com/dukex/autoflow/pkg/template"
)

const (
	Type            = "create_task"
	defaultPriority = "normal"
	openStatus      = "open"
)

// Handler stores a task in the allow-listed tasks target.
type Handler struct {
	store   records.Store
	targets *records.Targets
	now     func() time.Time
}

func New(store records.Store, targets *records.Targets) *Handler {
	return &Handler{store: store, targets: targets, now: time.Now}
}

func (h *Handler) Type() string { return Type }

func (h *Handler) Name() string { return "Create Task" }

func (h *Handler) Description() string {
	return "Creates a task record for the workflow's scope."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "minLength": 1},
			"description": map[string]any{"type": "string"},
			"assignee":    map[string]any{"type": "string"},
			"priority": map[string]any{
				"type":    "string",
				"enum":    []string{"low", "normal", "high", "urgent"},
				"default": defaultPriority,
			},
			"due_date": map[string]any{
				"type":        "string",
				"description": "Due date, usually RFC 3339. Supports templating.",
			},
		},
		"required": []string{"title"},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error) {
	err := protocol.ValidateHandlerConfig(Type, h, config)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"status":       openStatus,
		"priority":     protocol.StringOr(config, "priority", defaultPriority),
		"scope_id":     tc.ScopeID,
		"workflow_id":  tc.WorkflowID,
		"execution_id": tc.ExecutionID,
		"created_at":   h.now().UTC().Format(time.RFC3339),
	}

	for _, key := range []string{"title", "description", "assignee", "due_date"} {
		raw, ok := config[key].(string)
		if !ok {
			continue
		}

		rendered, err := template.RenderWithContext(raw, tc)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", key, err)
		}

		fields[key] = rendered
	}

	target, err := h.targets.Resolve(records.TasksTarget, fields)
	if err != nil {
		return nil, err
	}

	taskID := uuid.NewString()

	err = h.store.Upsert(ctx, target, taskID, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to store task: %w", err)
	}

	logger.InfoContext(ctx, "Task created", "task_id", taskID)

	return map[string]any{
		"task_id": taskID,
		"target":  target.Name,
	}, nil
}
