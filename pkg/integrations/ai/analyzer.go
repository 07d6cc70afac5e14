// Package ai talks to the AI analysis provider used by the ai_analysis action.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dukex/autoflow/pkg/protocol"
)

// Analyzer runs one analysis of data with the named model.
type Analyzer interface {
	Analyze(ctx context.Context, analysisType string, data map[string]any, model string) (map[string]any, error)
}

type Config struct {
	Endpoint     string        `yaml:"endpoint" validate:"required,url"`
	APIKey       string        `yaml:"api_key"`
	DefaultModel string        `yaml:"default_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// APIError is returned when the provider answered with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ai provider returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPAnalyzer posts {analysis_type, data, model} to the provider endpoint and expects a
// JSON object back.
type HTTPAnalyzer struct {
	cfg    Config
	client *http.Client
}

func NewHTTPAnalyzer(cfg Config) *HTTPAnalyzer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &HTTPAnalyzer{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// DefaultModel is the model used when neither the action nor the workflow names one.
func (a *HTTPAnalyzer) DefaultModel() string {
	return a.cfg.DefaultModel
}

type analyzeRequest struct {
	AnalysisType string         `json:"analysis_type"`
	Data         map[string]any `json:"data"`
	Model        string         `json:"model,omitempty"`
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, analysisType string, data map[string]any, model string) (map[string]any, error) {
	if model == "" {
		model = a.cfg.DefaultModel
	}

	body, err := json.Marshal(analyzeRequest{AnalysisType: analysisType, Data: data, Model: model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &protocol.TransportError{Method: req.Method, URL: a.cfg.Endpoint, Err: err}
	}

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &protocol.TransportError{Method: req.Method, URL: a.cfg.Endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result map[string]any

	err = json.Unmarshal(respBody, &result)
	if err != nil {
		return nil, fmt.Errorf("ai provider returned invalid JSON: %w", err)
	}

	if result == nil {
		result = map[string]any{}
	}

	return result, nil
}
