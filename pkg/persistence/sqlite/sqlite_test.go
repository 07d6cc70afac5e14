package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/autoflow/pkg/persistence/persistencetest"
)

func newTestPersistence(t *testing.T, path string) *Persistence {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := NewPersistence(context.Background(), logger, "sqlite://"+path)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, p.Close(context.Background()))
	})

	return p
}

func TestPersistence_Contract(t *testing.T) {
	p := newTestPersistence(t, filepath.Join(t.TempDir(), "autoflow.db"))

	persistencetest.Run(t, p)
}

func TestNewPersistence_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autoflow.db")
	ctx := context.Background()

	first := newTestPersistence(t, path)

	id, err := first.CreateRunning(ctx, "wf-reopen", map[string]any{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second := newTestPersistence(t, path)

	record, err := second.ExecutionByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "wf-reopen", record.WorkflowID)
}

func TestDSN(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "file:/tmp/a.db?_busy_timeout=5000&_foreign_keys=on", DSN("sqlite:///tmp/a.db"))
	assert.Equal(t, "file:data.db?mode=rwc&_busy_timeout=5000&_foreign_keys=on", DSN("data.db?mode=rwc"))
}
