// Package aianalysis provides the ai_analysis action.
package aianalysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/dukex/autoflow/pkg/integrations/ai"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/template"
)

const Type = "ai_analysis"

var ErrNoAnalyzer = errors.New("no AI analysis provider configured")

// Handler sends data to the analysis provider. The model is taken from the action config, then
// the workflow's ai_model, then defaultModel.
type Handler struct {
	analyzer     ai.Analyzer
	defaultModel string
}

func New(analyzer ai.Analyzer, defaultModel string) *Handler {
	return &Handler{analyzer: analyzer, defaultModel: defaultModel}
}

func (h *Handler) Type() string { return Type }

func (h *Handler) Name() string { return "AI Analysis" }

func (h *Handler) Description() string {
	return "Runs an AI analysis over the trigger payload or the configured data."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"analysis_type": map[string]any{
				"type":      "string",
				"minLength": 1,
				"examples":  []string{"sentiment", "summary", "classification"},
			},
			"data": map[string]any{
				"type":        "object",
				"description": "Data to analyse. Defaults to the trigger payload. String values support templating.",
			},
			"model": map[string]any{"type": "string"},
		},
		"required": []string{"analysis_type"},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error) {
	err := protocol.ValidateHandlerConfig(Type, h, config)
	if err != nil {
		return nil, err
	}

	if h.analyzer == nil {
		return nil, ErrNoAnalyzer
	}

	if _, ok := ctx.Deadline(); !ok && !tc.Deadline.IsZero() {
		var cancel context.CancelFunc

		ctx, cancel = context.WithDeadline(ctx, tc.Deadline)
		defer cancel()
	}

	data := tc.Payload

	if configured := protocol.Map(config, "data"); configured != nil {
		rendered, err := template.RenderValue(configured, tc)
		if err != nil {
			return nil, fmt.Errorf("failed to render data: %w", err)
		}

		data, _ = rendered.(map[string]any)
	}

	model := protocol.StringOr(config, "model", tc.AIModel)
	if model == "" {
		model = h.defaultModel
	}

	analysisType := protocol.String(config, "analysis_type")

	analysis, err := h.analyzer.Analyze(ctx, analysisType, data, model)
	if err != nil {
		return nil, fmt.Errorf("%s analysis failed: %w", analysisType, err)
	}

	logger.InfoContext(ctx, "AI analysis completed", "analysis_type", analysisType, "model", model)

	result := maps.Clone(analysis)
	if result == nil {
		result = map[string]any{}
	}

	result["model"] = model

	return result, nil
}
