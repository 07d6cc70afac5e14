package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/autoflow/pkg/models"
)

// ValidateID rejects identifiers that are unsafe to use as file names.
func ValidateID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s ID cannot be empty", kind)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%s ID contains invalid characters", kind)
	}

	return nil
}

// CheckTerminal verifies status is a terminal status accepted by Finalize.
func CheckTerminal(status models.ExecutionStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	return nil
}

// InScope reports whether def is visible from scopeID. An empty scopeID sees everything.
func InScope(def *models.WorkflowDefinition, scopeID string) bool {
	return scopeID == "" || def.ScopeID == scopeID
}

// PrepareWorkflow checks a definition before it is saved.
func PrepareWorkflow(workflow *models.WorkflowDefinition) error {
	if workflow == nil {
		return errors.New("workflow is nil")
	}

	return ValidateID("workflow", workflow.ID)
}
