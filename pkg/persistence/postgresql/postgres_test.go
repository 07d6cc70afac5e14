//go:build integration

package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dukex/autoflow/pkg/persistence/persistencetest"
	"github.com/dukex/autoflow/pkg/persistence/postgresql"
)

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"execution_outcomes", "executions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("autoflow_test"),
		postgres.WithUsername("autoflow"),
		postgres.WithPassword("autoflow"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		require.NoError(t, p.Close(ctx))
		require.NoError(t, postgresContainer.Terminate(context.Background()))

		cancel()
	})

	return p, ctx, databaseURL
}

func TestPersistence_Contract(t *testing.T) {
	p, _, _ := setupTestDB(t)

	persistencetest.Run(t, p)
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	for _, table := range []string{"workflows", "executions", "execution_outcomes"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_MigrationsAreIdempotent(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}
