package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

// Store implements persistence.Persistence with portable SQL.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	dialect Dialect
}

func NewStore(db *sql.DB, logger *slog.Logger, dialect Dialect) *Store {
	return &Store{db: db, logger: logger, dialect: dialect}
}

var _ persistence.Persistence = (*Store)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func unmarshalJSON[T any](data []byte, dest *T) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, dest)
}

const workflowColumns = `
	id
  , scope_id
  , name
  , trigger_type
  , trigger_config
  , actions
  , conditions
  , fail_fast
  , ai_model
  , is_active
  , max_concurrent_runs
  , created_at
  , updated_at`

func (s *Store) WorkflowByID(ctx context.Context, id string, scopeID string) (*models.WorkflowDefinition, error) {
	query := `SELECT` + workflowColumns + ` FROM workflows WHERE id = $1`
	args := []any{id}

	if scopeID != "" {
		query += ` AND scope_id = $2`
		args = append(args, scopeID)
	}

	workflow, err := s.scanWorkflow(s.db.QueryRowContext(ctx, s.q(query), args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return workflow, nil
}

func (s *Store) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT`+workflowColumns+` FROM workflows ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer s.closeRows(ctx, rows)

	workflows := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		workflow, err := s.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// SaveWorkflow inserts or replaces a workflow definition.
func (s *Store) SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error {
	if err := persistence.PrepareWorkflow(workflow); err != nil {
		return err
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	triggerConfig, err := marshalJSON(workflow.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	actions, err := marshalJSON(workflow.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	conditions, err := marshalJSON(workflow.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	query := `
		INSERT INTO workflows (
			id, scope_id, name, trigger_type, trigger_config, actions, conditions,
			fail_fast, ai_model, is_active, max_concurrent_runs, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			scope_id = EXCLUDED.scope_id,
			name = EXCLUDED.name,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			actions = EXCLUDED.actions,
			conditions = EXCLUDED.conditions,
			fail_fast = EXCLUDED.fail_fast,
			ai_model = EXCLUDED.ai_model,
			is_active = EXCLUDED.is_active,
			max_concurrent_runs = EXCLUDED.max_concurrent_runs,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, s.q(query),
		workflow.ID,
		workflow.ScopeID,
		workflow.Name,
		string(workflow.TriggerType),
		triggerConfig,
		actions,
		conditions,
		workflow.FailFast,
		workflow.AIModel,
		workflow.IsActive,
		workflow.MaxConcurrentRuns,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID, err)
	}

	return nil
}

func (s *Store) scanWorkflow(row scanner) (*models.WorkflowDefinition, error) {
	var (
		workflow      models.WorkflowDefinition
		triggerType   string
		triggerConfig []byte
		actions       []byte
		conditions    []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.ScopeID,
		&workflow.Name,
		&triggerType,
		&triggerConfig,
		&actions,
		&conditions,
		&workflow.FailFast,
		&workflow.AIModel,
		&workflow.IsActive,
		&workflow.MaxConcurrentRuns,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.TriggerType = models.TriggerType(triggerType)

	if err := unmarshalJSON(triggerConfig, &workflow.TriggerConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}

	if err := unmarshalJSON(actions, &workflow.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}

	if err := unmarshalJSON(conditions, &workflow.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}

	return &workflow, nil
}
