package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/mocks"
	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence/file"
	"github.com/dukex/autoflow/pkg/protocol"
	"github.com/dukex/autoflow/pkg/registry"
	"github.com/dukex/autoflow/pkg/web"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testAPI struct {
	app   *fiber.App
	store *file.Persistence
}

func setupTestApp(t *testing.T, runner web.Runner) *testAPI {
	t.Helper()

	return setupTestAppWithBus(t, runner, nil)
}

func setupTestAppWithBus(t *testing.T, runner web.Runner, publisher eventbus.EventPublisher) *testAPI {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	reg := registry.New(discard())
	reg.Register("echo", protocol.HandlerFunc(func(_ context.Context, _ map[string]any, tc models.TriggerContext, _ *slog.Logger) (map[string]any, error) {
		return map[string]any{"actor": tc.Actor.ID, "payload": tc.Payload}, nil
	}))

	if runner == nil {
		runner = engine.New(store, store, reg, discard())
	}

	app := fiber.New()
	web.NewAPIHandlers(runner, store, reg, validator.New(validator.WithRequiredStructEnabled()), publisher).Routes(app)

	return &testAPI{app: app, store: store}
}

func (a *testAPI) save(t *testing.T, def *models.WorkflowDefinition) {
	t.Helper()

	require.NoError(t, a.store.SaveWorkflow(context.Background(), def))
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func echoWorkflow(id string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:          id,
		TriggerType: models.TriggerTypeWebhook,
		IsActive:    true,
		Actions:     []models.ActionSpec{{Type: "echo", Config: map[string]any{}}},
	}
}

func TestTriggerWorkflow_RunsAndRecords(t *testing.T) {
	api := setupTestApp(t, nil)
	api.save(t, echoWorkflow("wf"))

	status, body := api.do(t, http.MethodPost, "/workflows/wf/trigger", web.TriggerRequest{
		Data:  map[string]any{"order": "A-1"},
		Actor: models.Actor{ID: "u-1"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var result models.ExecutionResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, models.ExecutionStatusSucceeded, result.Status)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "u-1", result.Outcomes[0].Result["actor"])

	status, body = api.do(t, http.MethodGet, "/executions/"+result.ExecutionID, nil)
	require.Equal(t, http.StatusOK, status)

	var record models.ExecutionRecord
	require.NoError(t, json.Unmarshal(body, &record))
	assert.Equal(t, "wf", record.WorkflowID)
	assert.Equal(t, "A-1", record.TriggerData["order"])

	status, body = api.do(t, http.MethodGet, "/workflows/wf/executions", nil)
	require.Equal(t, http.StatusOK, status)

	var list web.ExecutionListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.TotalCount)
}

func TestTriggerWorkflow_EmptyBody(t *testing.T) {
	api := setupTestApp(t, nil)
	api.save(t, echoWorkflow("wf"))

	status, body := api.do(t, http.MethodPost, "/workflows/wf/trigger", nil)
	assert.Equal(t, http.StatusOK, status, string(body))
}

func TestTriggerWorkflow_ConditionsNotMet(t *testing.T) {
	api := setupTestApp(t, nil)
	def := echoWorkflow("wf")
	def.Conditions = []models.ConditionSpec{{Field: "amount", Operator: models.OperatorGreaterThan, Value: 100}}
	api.save(t, def)

	status, body := api.do(t, http.MethodPost, "/workflows/wf/trigger", web.TriggerRequest{Data: map[string]any{"amount": 5}})
	require.Equal(t, http.StatusOK, status)

	var resp web.NotFiredResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.False(t, resp.Fired)
	assert.Equal(t, "wf", resp.WorkflowID)

	_, body = api.do(t, http.MethodGet, "/workflows/wf/executions", nil)

	var list web.ExecutionListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Zero(t, list.TotalCount)

	status, _ = api.do(t, http.MethodPost, "/workflows/wf/trigger", web.TriggerRequest{Data: map[string]any{"amount": 5}, SkipConditions: true})
	assert.Equal(t, http.StatusOK, status)

	_, body = api.do(t, http.MethodGet, "/workflows/wf/executions", nil)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 1, list.TotalCount)
}

func TestTriggerWorkflow_NotFound(t *testing.T) {
	api := setupTestApp(t, nil)
	inactive := echoWorkflow("off")
	inactive.IsActive = false
	api.save(t, inactive)

	for _, path := range []string{"/workflows/missing/trigger", "/workflows/off/trigger"} {
		status, body := api.do(t, http.MethodPost, path, web.TriggerRequest{})
		assert.Equal(t, http.StatusNotFound, status, path)
		assert.Contains(t, string(body), "workflow_not_found")
	}
}

type stubRunner struct {
	err error
}

func (s stubRunner) Run(context.Context, string, map[string]any, ...engine.RunOption) (*models.ExecutionResult, error) {
	return nil, s.err
}

func (s stubRunner) Fire(context.Context, string, map[string]any, ...engine.RunOption) (*models.ExecutionResult, error) {
	return nil, s.err
}

func TestTriggerWorkflow_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"concurrency", fmt.Errorf("workflow wf: %w", engine.ErrConcurrencyLimitReached), http.StatusConflict, "concurrency_limit_reached"},
		{"invalid definition", &engine.InvalidDefinitionError{WorkflowID: "wf", Reason: "no actions"}, http.StatusUnprocessableEntity, "invalid_workflow"},
		{"persistence", &engine.PersistenceError{Op: "create", Err: assert.AnError}, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupTestApp(t, stubRunner{err: tt.err})

			status, body := api.do(t, http.MethodPost, "/workflows/wf/trigger", web.TriggerRequest{})
			assert.Equal(t, tt.status, status)
			assert.Contains(t, string(body), tt.kind)
		})
	}
}

func TestTriggerWorkflow_InvalidBody(t *testing.T) {
	api := setupTestApp(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/workflows/wf/trigger", bytes.NewBufferString("{nope"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetExecution_NotFound(t *testing.T) {
	api := setupTestApp(t, nil)

	status, body := api.do(t, http.MethodGet, "/executions/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "execution_not_found")
}

func TestSaveWorkflow(t *testing.T) {
	api := setupTestApp(t, nil)

	status, _ := api.do(t, http.MethodPost, "/workflows", echoWorkflow("new"))
	require.Equal(t, http.StatusCreated, status)

	status, body := api.do(t, http.MethodGet, "/workflows/new", nil)
	require.Equal(t, http.StatusOK, status)

	var def models.WorkflowDefinition
	require.NoError(t, json.Unmarshal(body, &def))
	assert.Equal(t, "new", def.ID)

	bad := echoWorkflow("bad")
	bad.Actions[0].Type = "frobnicate"

	status, body = api.do(t, http.MethodPost, "/workflows", bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "frobnicate")
}

func TestGetActions(t *testing.T) {
	api := setupTestApp(t, nil)

	status, body := api.do(t, http.MethodGet, "/actions", nil)
	require.Equal(t, http.StatusOK, status)

	var infos []registry.HandlerInfo
	require.NoError(t, json.Unmarshal(body, &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "echo", infos[0].Type)
}

func TestHealthCheck(t *testing.T) {
	api := setupTestApp(t, nil)

	status, body := api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "healthy")
}

func TestTriggerWorkflow_Async(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "wf", mock.MatchedBy(func(e *events.WorkflowTriggered) bool {
		return e.WorkflowID == "wf" && e.ScopeID == "acme" && e.Actor.ID == "u-1" && e.TriggerData["k"] == "v"
	})).Return(nil).Once()

	api := setupTestAppWithBus(t, nil, bus)

	status, body := api.do(t, http.MethodPost, "/workflows/wf/trigger?async=true", web.TriggerRequest{
		Data:    map[string]any{"k": "v"},
		Actor:   models.Actor{ID: "u-1"},
		ScopeID: "acme",
	})
	require.Equal(t, http.StatusAccepted, status, string(body))

	var resp web.QueuedResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Queued)
	assert.NotEmpty(t, resp.EventID)

	bus.AssertExpectations(t)
}

func TestTriggerWorkflow_AsyncWithoutBus(t *testing.T) {
	api := setupTestApp(t, nil)

	status, body := api.do(t, http.MethodPost, "/workflows/wf/trigger?async=true", web.TriggerRequest{})
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.Contains(t, string(body), "async_unavailable")
}
