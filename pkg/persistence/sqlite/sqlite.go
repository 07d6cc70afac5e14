// Package sqlite provides embedded SQLite persistence for workflow definitions and execution records.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dukex/autoflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for SQLite.
type Persistence struct {
	*sqlbase.Store
}

// DSN turns a sqlite:// URL or a plain path into a go-sqlite3 data source name.
func DSN(databaseURL string) string {
	path := strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite3://"), "sqlite://")

	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	return "file:" + path + separator + "_busy_timeout=5000&_foreign_keys=on"
}

// NewPersistence opens (creating if needed) the database at databaseURL and migrates it.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("sqlite3", DSN(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows one writer; a single connection keeps transactions from contending.
	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, sqlbase.SQLite, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{Store: sqlbase.NewStore(database, logger, sqlbase.SQLite)}, nil
}
