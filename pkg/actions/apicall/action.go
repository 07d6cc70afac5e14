// Package apicall provides the api_call action, an outbound HTTP request whose response is
// reported to the workflow whatever its status code.
package apicall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/template"
)

const (
	Type = "api_call"

	maxResponseBytes = 10 << 20
)

// Handler performs the request with the configured client. The run's action deadline bounds
// every request.
type Handler struct {
	client *http.Client
}

func New(client *http.Client) *Handler {
	if client == nil {
		client = &http.Client{}
	}

	return &Handler{client: client}
}

func (h *Handler) Type() string { return Type }

func (h *Handler) Name() string { return "API Call" }

func (h *Handler) Description() string {
	return "Performs an HTTP request. Any response, including 4xx and 5xx, completes the action and its status is returned as http_code."
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"title":       "URL",
				"type":        "string",
				"minLength":   1,
				"description": "The URL to call. Supports templating.",
				"examples": []string{
					"https://api.example.com/users",
					"https://api.example.com/orders/{{.trigger.order_id}}",
				},
			},
			"method": map[string]any{
				"type":    "string",
				"default": http.MethodGet,
				"enum": []string{
					http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
					http.MethodPatch, http.MethodHead, http.MethodOptions,
					"get", "post", "put", "delete", "patch", "head", "options",
				},
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "HTTP headers. Values support templating.",
				"additionalProperties": map[string]any{"type": "string"},
				"examples": []map[string]string{
					{"Authorization": "Bearer {{.trigger.token}}"},
				},
			},
			"data": map[string]any{
				"description": "Request body for methods other than GET and HEAD. Objects and arrays are sent as JSON; strings are sent as is.",
			},
		},
		"required": []string{"url"},
	}
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, tc models.TriggerContext, logger *slog.Logger) (map[string]any, error) {
	err := protocol.ValidateHandlerConfig(Type, h, config)
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && !tc.Deadline.IsZero() {
		var cancel context.CancelFunc

		ctx, cancel = context.WithDeadline(ctx, tc.Deadline)
		defer cancel()
	}

	req, err := h.buildRequest(ctx, config, tc)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "Calling API", "method", req.Method, "url", req.URL.Redacted())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &protocol.TransportError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}

	return processResponse(ctx, resp, logger), nil
}

func (h *Handler) buildRequest(ctx context.Context, config map[string]any, tc models.TriggerContext) (*http.Request, error) {
	url, err := template.RenderWithContext(protocol.String(config, "url"), tc)
	if err != nil {
		return nil, fmt.Errorf("failed to render url template: %w", err)
	}

	method := strings.ToUpper(protocol.StringOr(config, "method", http.MethodGet))

	body, hasBody, err := buildRequestBody(method, config, tc)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSpace(url), body)
	if err != nil {
		return nil, &protocol.ConfigError{ActionType: Type, Problems: []string{fmt.Sprintf("invalid request: %v", err)}}
	}

	for key, value := range protocol.Map(config, "headers") {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		headerValue, err := template.RenderWithContext(raw, tc)
		if err != nil {
			return nil, fmt.Errorf("failed to render header '%s' template: %w", key, err)
		}

		req.Header.Set(key, headerValue)
	}

	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func buildRequestBody(method string, config map[string]any, tc models.TriggerContext) (io.Reader, bool, error) {
	data, ok := config["data"]
	if !ok || data == nil || method == http.MethodGet || method == http.MethodHead {
		return nil, false, nil
	}

	rendered, err := template.RenderValue(data, tc)
	if err != nil {
		return nil, false, fmt.Errorf("failed to render body template: %w", err)
	}

	if s, ok := rendered.(string); ok {
		return strings.NewReader(s), true, nil
	}

	bodyBytes, err := json.Marshal(rendered)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal body: %w", err)
	}

	return bytes.NewReader(bodyBytes), true, nil
}

// processResponse never fails: once a response arrived the call counts as done, and a body
// that breaks off mid-read is returned as far as it got, with body_error set.
func processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) map[string]any {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	var body any

	err := json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)
	}

	headers := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}

	result := map[string]any{
		"http_code": resp.StatusCode,
		"body":      body,
		"headers":   headers,
	}

	if readErr != nil {
		result["body_error"] = readErr.Error()
		logger.WarnContext(ctx, "API call response body incomplete", "http_code", resp.StatusCode, "body_length", len(bodyBytes), "error", readErr)

		return result
	}

	logger.InfoContext(ctx, "API call completed", "http_code", resp.StatusCode, "body_length", len(bodyBytes))

	return result
}
