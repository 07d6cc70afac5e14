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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

// ExecutionRepository stores one JSON document per execution record.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) path(id string) string {
	return filepath.Join(er.dir(), id+".json")
}

func (er *ExecutionRepository) CreateRunning(_ context.Context, workflowID string, triggerData map[string]any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", persistence.NewExecutionError("CreateRunning", "", fmt.Errorf("failed to generate execution ID: %w", err))
	}

	if triggerData == nil {
		triggerData = map[string]any{}
	}

	record := &models.ExecutionRecord{
		ID:          id.String(),
		WorkflowID:  workflowID,
		TriggerData: triggerData,
		Status:      models.ExecutionStatusRunning,
		StartedAt:   time.Now().UTC(),
		Outcomes:    []models.ActionOutcome{},
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	err = os.MkdirAll(er.dir(), 0750)
	if err != nil {
		return "", persistence.NewExecutionError("CreateRunning", record.ID, fmt.Errorf("failed to create executions directory: %w", err))
	}

	err = er.write(record)
	if err != nil {
		return "", persistence.NewExecutionError("CreateRunning", record.ID, err)
	}

	return record.ID, nil
}

func (er *ExecutionRepository) AppendOutcome(_ context.Context, executionID string, outcome models.ActionOutcome) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.read(executionID)
	if err != nil {
		return persistence.NewExecutionError("AppendOutcome", executionID, err)
	}

	if record.Status.IsTerminal() {
		return persistence.NewExecutionError("AppendOutcome", executionID, persistence.ErrExecutionFinalized)
	}

	record.Outcomes = mergeOutcomes(record.Outcomes, []models.ActionOutcome{outcome})

	err = er.write(record)
	if err != nil {
		return persistence.NewExecutionError("AppendOutcome", executionID, err)
	}

	return nil
}

func (er *ExecutionRepository) Finalize(_ context.Context, executionID string, status models.ExecutionStatus, outcomes []models.ActionOutcome, executionTimeMs int64, errorMessage string) error {
	if err := persistence.CheckTerminal(status); err != nil {
		return persistence.NewExecutionError("Finalize", executionID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.read(executionID)
	if err != nil {
		return persistence.NewExecutionError("Finalize", executionID, err)
	}

	if record.Status.IsTerminal() {
		return persistence.NewExecutionError("Finalize", executionID, persistence.ErrExecutionFinalized)
	}

	completedAt := time.Now().UTC()
	record.Status = status
	record.CompletedAt = &completedAt
	record.ExecutionTimeMs = &executionTimeMs
	record.Outcomes = mergeOutcomes(record.Outcomes, outcomes)

	if errorMessage != "" {
		record.ErrorMessage = &errorMessage
	}

	err = er.write(record)
	if err != nil {
		return persistence.NewExecutionError("Finalize", executionID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, executionID string) (*models.ExecutionRecord, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.read(executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	return record, nil
}

func (er *ExecutionRepository) GetByWorkflow(_ context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	jsonFiles, err := fs.Glob(os.DirFS(er.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0)

	for _, file := range jsonFiles {
		record, err := er.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if record.WorkflowID == workflowID {
			records = append(records, record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	return records, nil
}

func (er *ExecutionRepository) read(executionID string) (*models.ExecutionRecord, error) {
	if err := persistence.ValidateID("execution", executionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(er.path(executionID)) // #nosec G304 -- executionID is validated above
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to read execution file: %w", err)
	}

	var record models.ExecutionRecord

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	if record.Outcomes == nil {
		record.Outcomes = []models.ActionOutcome{}
	}

	return &record, nil
}

func (er *ExecutionRepository) write(record *models.ExecutionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	return writeFileAtomic(er.path(record.ID), data)
}

// mergeOutcomes overlays incoming outcomes onto existing ones by index and keeps index order.
func mergeOutcomes(existing, incoming []models.ActionOutcome) []models.ActionOutcome {
	byIndex := make(map[int]models.ActionOutcome, len(existing)+len(incoming))
	for _, o := range existing {
		byIndex[o.Index] = o
	}

	for _, o := range incoming {
		byIndex[o.Index] = o
	}

	merged := make([]models.ActionOutcome, 0, len(byIndex))
	for _, o := range byIndex {
		merged = append(merged, o)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Index < merged[j].Index })

	return merged
}
