package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/autoflow/pkg/persistence/sqlbase"
	"github.com/dukex/autoflow/pkg/persistence/sqlite"
	"github.com/dukex/autoflow/pkg/records"
	"github.com/dukex/autoflow/pkg/records/redisstore"
	"github.com/dukex/autoflow/pkg/records/sqlstore"
)

var supportedRecordProviders = []string{"memory", "redis", "rediss", "postgres", "postgresql", "sqlite", "sqlite3"}

// NewRecordStore opens the record store named by recordsURL. SQL stores get one table per
// target. The returned close function is never nil.
func NewRecordStore(ctx context.Context, logger *slog.Logger, recordsURL string, targets []records.Target) (records.Store, func() error, error) {
	noop := func() error { return nil }

	switch parseProvider(recordsURL, supportedRecordProviders, "memory") {
	case "redis", "rediss":
		store, err := redisstore.Connect(ctx, logger.With("module", "redis_records"), recordsURL)
		if err != nil {
			return nil, noop, err
		}

		return store, store.Close, nil
	case "postgres", "postgresql":
		return openSQLRecords(ctx, logger, "postgres", recordsURL, sqlbase.Postgres, targets)
	case "sqlite", "sqlite3":
		return openSQLRecords(ctx, logger, "sqlite3", sqlite.DSN(recordsURL), sqlbase.SQLite, targets)
	default:
		return records.NewMemoryStore(), noop, nil
	}
}

func openSQLRecords(ctx context.Context, logger *slog.Logger, driver, dsn string, dialect sqlbase.Dialect, targets []records.Target) (records.Store, func() error, error) {
	noop := func() error { return nil }

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open record database: %w", err)
	}

	if dialect.Name == sqlbase.SQLite.Name {
		db.SetMaxOpenConns(1)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, noop, fmt.Errorf("failed to ping record database: %w", err)
	}

	store := sqlstore.New(db, logger.With("module", "sql_records"), dialect)

	err = store.EnsureTables(ctx, targets)
	if err != nil {
		_ = db.Close()

		return nil, noop, err
	}

	return store, db.Close, nil
}
