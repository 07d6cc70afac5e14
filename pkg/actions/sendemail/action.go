// Package sendemail provides the send_email action.
package sendemail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/autoflow/pkg/integrations/email"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/template"
)

const Type = "send_email"

// Handler sends one email per execution. Recipients, subject and body are templates over
// the trigger context.
type Handler struct {
	sender email.Sender
}

func New(sender email.Sender) *Handler {
	return &Handler{sender: sender}
}

func (h *Handler) Type() string { return Type }

func (h *Handler) Name() string { return "Send Email" }

func (h *Handler) Description() string {
	return "Sends an email to one or more recipients. Subject and body support templating."
}

func (h *Handler) Schema() map[string]any {
	recipients := map[string]any{
		"type":      []string{"string", "array"},
		"items":     map[string]any{"type": "string"},
		"minLength": 1,
		"minItems":  1,
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": recipients,
			"cc": recipients,
			"from": map[string]any{
				"type":        "string",
				"description": "Sender address. Defaults to the configured SMTP sender.",
			},
			"subject": map[string]any{
				"type":      "string",
				"minLength": 1,
				"examples":  []string{"Order {{.trigger.order_id}} received"},
			},
			"body": map[string]any{
				"type":     "string",
				"format":   "code",
				"examples": []string{"Hello {{.actor.name}}, order {{.trigger.order_id}} was received."},
			},
			"html_body": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Optional HTML alternative to body.",
			},
		},
		"required": []string{"to", "subject", "body"},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error) {
	err := protocol.ValidateHandlerConfig(Type, h, config)
	if err != nil {
		return nil, err
	}

	to, err := renderAll(protocol.StringList(config, "to"), tc)
	if err != nil {
		return nil, err
	}

	if len(to) == 0 {
		return nil, &protocol.ConfigError{ActionType: Type, Missing: []string{"to"}}
	}

	cc, err := renderAll(protocol.StringList(config, "cc"), tc)
	if err != nil {
		return nil, err
	}

	subject, err := template.RenderWithContext(protocol.String(config, "subject"), tc)
	if err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}

	body, err := template.RenderWithContext(protocol.String(config, "body"), tc)
	if err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}

	htmlBody, err := template.RenderWithContext(protocol.String(config, "html_body"), tc)
	if err != nil {
		return nil, fmt.Errorf("failed to render html body: %w", err)
	}

	msg := email.Message{
		From:     protocol.String(config, "from"),
		To:       to,
		Cc:       cc,
		Subject:  subject,
		Body:     body,
		HTMLBody: htmlBody,
	}

	err = h.sender.Send(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	logger.InfoContext(ctx, "Email sent", "recipients", len(msg.Recipients()))

	return map[string]any{
		"recipients": msg.Recipients(),
		"subject":    subject,
	}, nil
}

func renderAll(values []string, tc models.TriggerContext) ([]string, error) {
	out := make([]string, 0, len(values))

	for _, v := range values {
		rendered, err := template.RenderWithContext(v, tc)
		if err != nil {
			return nil, fmt.Errorf("failed to render recipient: %w", err)
		}

		out = append(out, protocol.StringList(map[string]any{"v": rendered}, "v")...)
	}

	return out, nil
}
