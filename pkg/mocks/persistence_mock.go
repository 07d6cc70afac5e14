// Package mocks holds testify mocks of the engine's collaborators.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/autoflow/pkg/models"
)

// MockWorkflowStore is a mock implementation of persistence.WorkflowStore.
type MockWorkflowStore struct {
	mock.Mock
}

func (m *MockWorkflowStore) WorkflowByID(ctx context.Context, id string, scopeID string) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, id, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

// MockExecutionRecorder is a mock implementation of persistence.ExecutionRecorder.
type MockExecutionRecorder struct {
	mock.Mock
}

func (m *MockExecutionRecorder) CreateRunning(ctx context.Context, workflowID string, triggerData map[string]any) (string, error) {
	args := m.Called(ctx, workflowID, triggerData)

	return args.String(0), args.Error(1)
}

func (m *MockExecutionRecorder) AppendOutcome(ctx context.Context, executionID string, outcome models.ActionOutcome) error {
	args := m.Called(ctx, executionID, outcome)

	return args.Error(0)
}

func (m *MockExecutionRecorder) Finalize(
	ctx context.Context,
	executionID string,
	status models.ExecutionStatus,
	outcomes []models.ActionOutcome,
	executionTimeMs int64,
	errorMessage string,
) error {
	args := m.Called(ctx, executionID, status, outcomes, executionTimeMs, errorMessage)

	return args.Error(0)
}
