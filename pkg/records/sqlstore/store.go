// Package sqlstore keeps records in SQL tables created from the target allow-list.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dukex/autoflow/pkg/persistence/sqlbase"
	"github.com/dukex/autoflow/pkg/records"
)

// Store writes every column as TEXT. All identifiers come from records.Targets, which
// rejects anything that is not a plain identifier, and are quoted on top of that.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	dialect sqlbase.Dialect
}

func New(db *sql.DB, logger *slog.Logger, dialect sqlbase.Dialect) *Store {
	return &Store{db: db, logger: logger, dialect: dialect}
}

func quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// EnsureTables creates a table per target when it does not exist yet.
func (s *Store) EnsureTables(ctx context.Context, targets []records.Target) error {
	for _, target := range targets {
		columns := []string{quote(target.KeyColumn) + " TEXT PRIMARY KEY"}
		for _, c := range target.Columns {
			columns = append(columns, quote(c)+" TEXT")
		}

		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(target.Table), strings.Join(columns, ", "))

		_, err := s.db.ExecContext(ctx, ddl)
		if err != nil {
			return fmt.Errorf("failed to create table for target %s: %w", target.Name, err)
		}

		s.logger.DebugContext(ctx, "Record table ready", "target", target.Name, "table", target.Table)
	}

	return nil
}

func (s *Store) Upsert(ctx context.Context, target records.Target, key string, fields map[string]any) error {
	columns := make([]string, 0, len(fields))

	for column := range fields {
		if !target.Allows(column) {
			return fmt.Errorf("%w %s: %s", records.ErrUnknownColumn, target.Name, column)
		}

		columns = append(columns, column)
	}

	sort.Strings(columns)

	names := []string{quote(target.KeyColumn)}
	placeholders := []string{"$1"}
	args := []any{key}
	updates := make([]string, 0, len(columns))

	for i, column := range columns {
		names = append(names, quote(column))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, records.Text(fields[column]))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quote(column), quote(column)))
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		quote(target.Table),
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
		quote(target.KeyColumn),
		conflict,
	)

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to write record %s:%s: %w", target.Table, key, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, target records.Target, key string) (map[string]any, error) {
	columns := append([]string{target.KeyColumn}, target.Columns...)

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", strings.Join(quoted, ", "), quote(target.Table), quote(target.KeyColumn))

	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))

	for i := range values {
		dest[i] = &values[i]
	}

	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(query), key).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, records.ErrRecordNotFound
		}

		return nil, fmt.Errorf("failed to read record %s:%s: %w", target.Table, key, err)
	}

	row := make(map[string]any, len(columns))

	for i, c := range columns {
		if values[i].Valid {
			row[c] = values[i].String
		}
	}

	return row, nil
}
