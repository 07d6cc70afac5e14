// Package file provides file-based persistence for workflow definitions and execution records.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of JSON files under a root directory.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
	}
}

var _ persistence.Persistence = (*Persistence)(nil)

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string, scopeID string) (*models.WorkflowDefinition, error) {
	return fp.workflowRepo.GetByID(ctx, id, scopeID)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error {
	return fp.workflowRepo.Save(ctx, workflow)
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) CreateRunning(ctx context.Context, workflowID string, triggerData map[string]any) (string, error) {
	return fp.executionRepo.CreateRunning(ctx, workflowID, triggerData)
}

func (fp *Persistence) AppendOutcome(ctx context.Context, executionID string, outcome models.ActionOutcome) error {
	return fp.executionRepo.AppendOutcome(ctx, executionID, outcome)
}

func (fp *Persistence) Finalize(ctx context.Context, executionID string, status models.ExecutionStatus, outcomes []models.ActionOutcome, executionTimeMs int64, errorMessage string) error {
	return fp.executionRepo.Finalize(ctx, executionID, status, outcomes, executionTimeMs, errorMessage)
}

func (fp *Persistence) ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	return fp.executionRepo.GetByID(ctx, id)
}

func (fp *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	return fp.executionRepo.GetByWorkflow(ctx, workflowID)
}
