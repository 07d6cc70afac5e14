package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string // File system root for storing workflows
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

// GetAll returns every stored workflow ordered by creation time, newest first.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflow, err := wr.GetByID(ctx, strings.TrimSuffix(file, ".json"), "")
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// GetByID returns the workflow with the given id visible from scopeID.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string, scopeID string) (*models.WorkflowDefinition, error) {
	if err := persistence.ValidateID("workflow", workflowID); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, err)
	}

	filePath := filepath.Join(wr.dir(), workflowID+".json")

	data, err := os.ReadFile(filePath) // #nosec G304 -- workflowID is validated above
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var workflow models.WorkflowDefinition

	err = json.Unmarshal(data, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	if !persistence.InScope(&workflow, scopeID) {
		return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

// Save saves a workflow to the file system.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.WorkflowDefinition) error {
	if err := persistence.PrepareWorkflow(workflow); err != nil {
		return err
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	err := os.MkdirAll(wr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	return writeFileAtomic(filepath.Join(wr.dir(), workflow.ID+".json"), data)
}

// writeFileAtomic writes to a temp file in the same directory and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	err := os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	err = os.Rename(tmp, path)
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}
