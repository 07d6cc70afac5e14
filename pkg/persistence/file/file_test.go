package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/persistence/persistencetest"
)

func TestPersistence_Contract(t *testing.T) {
	persistencetest.Run(t, NewPersistence("file://"+t.TempDir()))
}

func TestPersistence_HealthCheckMissingRoot(t *testing.T) {
	t.Parallel()

	p := NewPersistence(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, p.HealthCheck(context.Background()), os.ErrNotExist)
}

func TestWorkflowRepository_RejectsTraversal(t *testing.T) {
	t.Parallel()

	repo := NewWorkflowRepository(t.TempDir())

	_, err := repo.GetByID(context.Background(), "../secrets", "")
	require.Error(t, err)
	assert.False(t, persistence.IsWorkflowNotFound(err))

	err = repo.Save(context.Background(), &models.WorkflowDefinition{ID: "a/b"})
	assert.Error(t, err)
}

func TestWorkflowRepository_FilePermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo := NewWorkflowRepository(root)

	require.NoError(t, repo.Save(context.Background(), &models.WorkflowDefinition{ID: "wf-perm", TriggerType: models.TriggerTypeManual}))

	info, err := os.Stat(filepath.Join(root, "workflows", "wf-perm.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestMergeOutcomes(t *testing.T) {
	t.Parallel()

	existing := []models.ActionOutcome{{Index: 0, ActionType: "a", Success: true}}
	incoming := []models.ActionOutcome{{Index: 1, ActionType: "b"}, {Index: 0, ActionType: "a", Success: false, Error: "x"}}

	merged := mergeOutcomes(existing, incoming)
	require.Len(t, merged, 2)
	assert.False(t, merged[0].Success)
	assert.Equal(t, "b", merged[1].ActionType)
}
