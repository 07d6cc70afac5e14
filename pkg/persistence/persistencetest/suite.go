// Package persistencetest holds behaviour tests shared by every persistence implementation.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

// Run exercises p against the persistence contract. Each subtest creates its own ids so a
// single instance can be shared.
func Run(t *testing.T, p persistence.Persistence) {
	t.Helper()

	t.Run("workflow save and load", func(t *testing.T) { testWorkflowRoundTrip(t, p) })
	t.Run("workflow scope", func(t *testing.T) { testWorkflowScope(t, p) })
	t.Run("workflow not found", func(t *testing.T) { testWorkflowNotFound(t, p) })
	t.Run("execution lifecycle", func(t *testing.T) { testExecutionLifecycle(t, p) })
	t.Run("finalized record is immutable", func(t *testing.T) { testFinalizedImmutable(t, p) })
	t.Run("finalize rejects running status", func(t *testing.T) { testFinalizeRejectsRunning(t, p) })
	t.Run("execution not found", func(t *testing.T) { testExecutionNotFound(t, p) })
	t.Run("executions by workflow", func(t *testing.T) { testExecutionsByWorkflow(t, p) })
	t.Run("health check", func(t *testing.T) { require.NoError(t, p.HealthCheck(context.Background())) })
}

func sampleWorkflow(id, scope string) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:            id,
		ScopeID:       scope,
		Name:          "Order follow-up",
		TriggerType:   models.TriggerTypeWebhook,
		TriggerConfig: map[string]any{"path": "/orders"},
		Actions: []models.ActionSpec{
			{Type: "send_email", Config: map[string]any{"to": "ops@example.com", "subject": "New order", "body": "{{.trigger.id}}"}},
			{Type: "api_call", Config: map[string]any{"url": "https://example.com/hook", "method": "POST"}},
		},
		Conditions: []models.ConditionSpec{
			{Field: "amount", Operator: models.OperatorGreaterThan, Value: 100.0},
		},
		FailFast:          true,
		AIModel:           "gpt-4o-mini",
		IsActive:          true,
		MaxConcurrentRuns: 2,
	}
}

func testWorkflowRoundTrip(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	wf := sampleWorkflow("wf-roundtrip", "acme")

	require.NoError(t, p.SaveWorkflow(ctx, wf))
	assert.False(t, wf.CreatedAt.IsZero())

	loaded, err := p.WorkflowByID(ctx, wf.ID, "")
	require.NoError(t, err)

	assert.Equal(t, wf.ID, loaded.ID)
	assert.Equal(t, wf.ScopeID, loaded.ScopeID)
	assert.Equal(t, wf.Name, loaded.Name)
	assert.Equal(t, wf.TriggerType, loaded.TriggerType)
	assert.Equal(t, wf.TriggerConfig, loaded.TriggerConfig)
	assert.Equal(t, wf.Actions, loaded.Actions)
	assert.Equal(t, wf.Conditions, loaded.Conditions)
	assert.Equal(t, wf.FailFast, loaded.FailFast)
	assert.Equal(t, wf.AIModel, loaded.AIModel)
	assert.Equal(t, wf.IsActive, loaded.IsActive)
	assert.Equal(t, wf.MaxConcurrentRuns, loaded.MaxConcurrentRuns)

	wf.Name = "Renamed"
	require.NoError(t, p.SaveWorkflow(ctx, wf))

	loaded, err = p.WorkflowByID(ctx, wf.ID, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)

	all, err := p.Workflows(ctx)
	require.NoError(t, err)

	found := false
	for _, w := range all {
		if w.ID == wf.ID {
			found = true
		}
	}

	assert.True(t, found)
}

func testWorkflowScope(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	require.NoError(t, p.SaveWorkflow(ctx, sampleWorkflow("wf-scoped", "acme")))

	_, err := p.WorkflowByID(ctx, "wf-scoped", "globex")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func testWorkflowNotFound(t *testing.T, p persistence.Persistence) {
	_, err := p.WorkflowByID(context.Background(), "wf-missing", "")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func testExecutionLifecycle(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	trigger := map[string]any{"order_id": "A-1", "amount": 150.5, "items": []any{"x", "y"}}

	id, err := p.CreateRunning(ctx, "wf-lifecycle", trigger)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := p.ExecutionByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, record.Status)
	assert.Equal(t, trigger, record.TriggerData)
	assert.Nil(t, record.ExecutionTimeMs)
	assert.Nil(t, record.CompletedAt)
	assert.Empty(t, record.Outcomes)

	first := models.ActionOutcome{Index: 0, ActionType: "send_email", Success: true, Result: map[string]any{"recipients": []any{"ops@example.com"}}, DurationMs: 12}
	require.NoError(t, p.AppendOutcome(ctx, id, first))

	record, err = p.ExecutionByID(ctx, id)
	require.NoError(t, err)
	require.Len(t, record.Outcomes, 1)
	assert.Equal(t, first, record.Outcomes[0])
	assert.Nil(t, record.ExecutionTimeMs)

	second := models.ActionOutcome{Index: 1, ActionType: "api_call", Success: false, Error: "POST https://example.com: transport error: refused", DurationMs: 3}
	outcomes := []models.ActionOutcome{first, second}

	require.NoError(t, p.Finalize(ctx, id, models.ExecutionStatusFailed, outcomes, 42, second.Error))

	record, err = p.ExecutionByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.Equal(t, outcomes, record.Outcomes)
	require.NotNil(t, record.ExecutionTimeMs)
	assert.Equal(t, int64(42), *record.ExecutionTimeMs)
	require.NotNil(t, record.CompletedAt)
	assert.False(t, record.CompletedAt.Before(record.StartedAt.Add(-time.Second)))
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, second.Error, *record.ErrorMessage)
}

func testFinalizedImmutable(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	id, err := p.CreateRunning(ctx, "wf-immutable", nil)
	require.NoError(t, err)

	outcomes := []models.ActionOutcome{{Index: 0, ActionType: "create_task", Success: true, Result: map[string]any{"task_id": "t-1"}}}
	require.NoError(t, p.Finalize(ctx, id, models.ExecutionStatusSucceeded, outcomes, 5, ""))

	err = p.Finalize(ctx, id, models.ExecutionStatusFailed, nil, 9, "again")
	assert.ErrorIs(t, err, persistence.ErrExecutionFinalized)

	err = p.AppendOutcome(ctx, id, models.ActionOutcome{Index: 1, ActionType: "api_call", Success: true})
	assert.ErrorIs(t, err, persistence.ErrExecutionFinalized)

	record, err := p.ExecutionByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSucceeded, record.Status)
	assert.Equal(t, outcomes, record.Outcomes)
	assert.Nil(t, record.ErrorMessage)
	require.NotNil(t, record.ExecutionTimeMs)
	assert.Equal(t, int64(5), *record.ExecutionTimeMs)
}

func testFinalizeRejectsRunning(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	id, err := p.CreateRunning(ctx, "wf-running", nil)
	require.NoError(t, err)

	err = p.Finalize(ctx, id, models.ExecutionStatusRunning, nil, 1, "")
	assert.ErrorIs(t, err, persistence.ErrInvalidStatus)
}

func testExecutionNotFound(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	_, err := p.ExecutionByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, persistence.IsExecutionNotFound(err))

	err = p.AppendOutcome(ctx, "00000000-0000-0000-0000-000000000000", models.ActionOutcome{})
	assert.True(t, persistence.IsExecutionNotFound(err))

	err = p.Finalize(ctx, "00000000-0000-0000-0000-000000000000", models.ExecutionStatusSucceeded, nil, 0, "")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func testExecutionsByWorkflow(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	first, err := p.CreateRunning(ctx, "wf-listing", map[string]any{"n": 1.0})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	second, err := p.CreateRunning(ctx, "wf-listing", map[string]any{"n": 2.0})
	require.NoError(t, err)

	_, err = p.CreateRunning(ctx, "wf-other", nil)
	require.NoError(t, err)

	records, err := p.ExecutionsByWorkflow(ctx, "wf-listing")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second, records[0].ID)
	assert.Equal(t, first, records[1].ID)

	records, err = p.ExecutionsByWorkflow(ctx, "wf-nothing")
	require.NoError(t, err)
	assert.Empty(t, records)
}
