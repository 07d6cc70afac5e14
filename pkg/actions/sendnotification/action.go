// Package sendnotification provides the send_notification action.
package sendnotification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autoflow/pkg/integrations/notify"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/template"
)

const Type = "send_notification"

type Handler struct {
	notifier notify.Notifier
}

func New(notifier notify.Notifier) *Handler {
	return &Handler{notifier: notifier}
}

func (h *Handler) Type() string { return Type }

func (h *Handler) Name() string { return "Send Notification" }

func (h *Handler) Description() string {
	return "Publishes a notification to a channel."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message":   map[string]any{"type": "string", "minLength": 1},
			"channel":   map[string]any{"type": "string", "default": notify.DefaultChannel},
			"title":     map[string]any{"type": "string"},
			"recipient": map[string]any{"type": "string"},
		},
		"required": []string{"message"},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error) {
	err := protocol.ValidateHandlerConfig(Type, h, config)
	if err != nil {
		return nil, err
	}

	rendered := make(map[string]string, 4)

	for _, key := range []string{"message", "title", "recipient", "channel"} {
		value, err := template.RenderWithContext(protocol.String(config, key), tc)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", key, err)
		}

		rendered[key] = value
	}

	channel := protocol.StringOr(map[string]any{"channel": rendered["channel"]}, "channel", notify.DefaultChannel)

	err = h.notifier.Notify(ctx, notify.Notification{
		Channel:     channel,
		Title:       rendered["title"],
		Message:     rendered["message"],
		Recipient:   rendered["recipient"],
		ScopeID:     tc.ScopeID,
		WorkflowID:  tc.WorkflowID,
		ExecutionID: tc.ExecutionID,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deliver notification: %w", err)
	}

	logger.InfoContext(ctx, "Notification sent", "channel", channel)

	return map[string]any{
		"channel":   channel,
		"delivered": true,
	}, nil
}
