package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/autoflow/pkg/models"
)

func TestNewExecutionFinished(t *testing.T) {
	t.Parallel()

	succeeded := NewExecutionFinished(&models.ExecutionResult{
		ExecutionID: "e1",
		WorkflowID:  "wf",
		Status:      models.ExecutionStatusSucceeded,
	})
	assert.Equal(t, WorkflowExecutionCompletedEvent, succeeded.GetType())

	failed := NewExecutionFinished(&models.ExecutionResult{
		ExecutionID:  "e2",
		WorkflowID:   "wf",
		Status:       models.ExecutionStatusFailed,
		ErrorMessage: "unknown action type: frobnicate",
	})
	require.Equal(t, WorkflowExecutionFailedEvent, failed.GetType())

	event, ok := failed.(*WorkflowExecutionFailed)
	require.True(t, ok)
	assert.Equal(t, "e2", event.ExecutionID)
	assert.Equal(t, "unknown action type: frobnicate", event.Error)
}

func TestNew_DecodesEveryType(t *testing.T) {
	t.Parallel()

	for _, eventType := range []EventType{
		WorkflowTriggeredEvent,
		WorkflowExecutionStartedEvent,
		WorkflowExecutionCompletedEvent,
		WorkflowExecutionFailedEvent,
		NotificationEvent,
	} {
		event, ok := New(eventType)
		require.True(t, ok, eventType)
		assert.Equal(t, eventType, event.GetType())
	}

	_, ok := New("workflow.unknown")
	assert.False(t, ok)
}

func TestWorkflowTriggered_JSON(t *testing.T) {
	t.Parallel()

	original := NewWorkflowTriggered("wf-1", map[string]any{"amount": 120.5}, models.Actor{ID: "u1"})
	original.ScopeID = "team-a"

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"workflow.triggered"`)

	var decoded WorkflowTriggered
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, "team-a", decoded.ScopeID)
	assert.Equal(t, "u1", decoded.Actor.ID)
	assert.Equal(t, map[string]any{"amount": 120.5}, decoded.TriggerData)
}
