// Package updaterecord provides the update_record action.
package updaterecord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/records"
	"github.com/dukex/autoflow/pkg/template"
)

const Type = "update_record"

// Handler upserts fields of a record in an allow-listed target. The target and column names in
// the config are looked up in the allow-list and never reach the store as identifiers.
type Handler struct {
	store   records.Store
	targets *records.Targets
}

func New(store records.Store, targets *records.Targets) *Handler {
	return &Handler{store: store, targets: targets}
}

func (h *Handler) Type() string { return Type }

func (h *Handler) Name() string { return "Update Record" }

func (h *Handler) Description() string {
	return "Creates or updates a record in an allow-listed target."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"target": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Name of an allow-listed record target.",
			},
			"key": map[string]any{
				"type":      "string",
				"minLength": 1,
				"examples":  []string{"{{.trigger.customer_id}}"},
			},
			"fields": map[string]any{
				"type":          "object",
				"minProperties": 1,
			},
		},
		"required": []string{"target", "key", "fields"},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error) {
	err := protocol.ValidateHandlerConfig(Type, h, config)
	if err != nil {
		return nil, err
	}

	key, err := template.RenderWithContext(protocol.String(config, "key"), tc)
	if err != nil {
		return nil, fmt.Errorf("failed to render key: %w", err)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &protocol.ConfigError{ActionType: Type, Problems: []string{"key rendered empty"}}
	}

	rendered, err := template.RenderValue(protocol.Map(config, "fields"), tc)
	if err != nil {
		return nil, fmt.Errorf("failed to render fields: %w", err)
	}

	fields, _ := rendered.(map[string]any)

	target, err := h.targets.Resolve(protocol.String(config, "target"), fields)
	if err != nil {
		return nil, err
	}

	err = h.store.Upsert(ctx, target, key, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	logger.InfoContext(ctx, "Record updated", "target", target.Name, "key", key)

	return map[string]any{
		"target": target.Name,
		"key":    key,
		"fields": fields,
	}, nil
}
