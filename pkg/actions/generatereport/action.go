// Package generatereport provides the generate_report action.
package generatereport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/records"
	"github.com/dukex/autoflow/pkg/template"
)

const Type = "generate_report"

// DefaultTemplate lists every top level payload key. Keys are rendered in sorted order.
const DefaultTemplate = `{{.title}}
Workflow: {{.workflow_id}}
Execution: {{.execution_id}}
{{range $key, $value := .trigger}}
{{$key}}: {{$value}}{{end}}
`

var errNoStore = errors.New("report storage requested but no record store is configured")

// Handler renders a report from the trigger payload and can store it in the reports target.
type Handler struct {
	store   records.Store
	targets *records.Targets
	now     func() time.Time
}

// New returns a handler. store may be nil when reports are never stored.
func New(store records.Store, targets *records.Targets) *Handler {
	return &Handler{store: store, targets: targets, now: time.Now}
}

func (h *Handler) Type() string { return Type }

func (h *Handler) Name() string { return "Generate Report" }

func (h *Handler) Description() string {
	return "Renders a report from the trigger payload and optionally stores it."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"report_type": map[string]any{"type": "string", "minLength": 1},
			"title":       map[string]any{"type": "string"},
			"template": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Go template over trigger, actor, title and report_type.",
			},
			"store": map[string]any{"type": "boolean", "default": false},
		},
		"required": []string{"report_type"},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error) {
	err := protocol.ValidateHandlerConfig(Type, h, config)
	if err != nil {
		return nil, err
	}

	reportType := protocol.String(config, "report_type")
	data := tc.TemplateData()

	title, err := template.RenderString(protocol.StringOr(config, "title", reportType+" report"), data)
	if err != nil {
		return nil, fmt.Errorf("failed to render title: %w", err)
	}

	data["title"] = title
	data["report_type"] = reportType

	content, err := template.RenderString(protocol.StringOr(config, "template", DefaultTemplate), data)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	reportID := uuid.NewString()
	store := protocol.Bool(config, "store")

	if store {
		err = h.save(ctx, reportID, map[string]any{
			"report_type":  reportType,
			"title":        title,
			"content":      content,
			"scope_id":     tc.ScopeID,
			"workflow_id":  tc.WorkflowID,
			"execution_id": tc.ExecutionID,
			"created_at":   h.now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
	}

	logger.InfoContext(ctx, "Report generated", "report_id", reportID, "report_type", reportType, "stored", store)

	return map[string]any{
		"report_id":   reportID,
		"report_type": reportType,
		"title":       title,
		"content":     content,
		"stored":      store,
	}, nil
}

func (h *Handler) save(ctx context.Context, reportID string, fields map[string]any) error {
	if h.store == nil || h.targets == nil {
		return errNoStore
	}

	target, err := h.targets.Resolve(records.ReportsTarget, fields)
	if err != nil {
		return err
	}

	err = h.store.Upsert(ctx, target, reportID, fields)
	if err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	return nil
}
