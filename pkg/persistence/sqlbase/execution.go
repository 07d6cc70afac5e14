package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/autoflow/pkg/models"
	"github.com/dukex/autoflow/pkg/persistence"
)

func (s *Store) CreateRunning(ctx context.Context, workflowID string, triggerData map[string]any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", persistence.NewExecutionError("CreateRunning", "", fmt.Errorf("failed to generate execution ID: %w", err))
	}

	if triggerData == nil {
		triggerData = map[string]any{}
	}

	data, err := marshalJSON(triggerData)
	if err != nil {
		return "", persistence.NewExecutionError("CreateRunning", id.String(), fmt.Errorf("failed to marshal trigger data: %w", err))
	}

	query := `
		INSERT INTO executions (id, workflow_id, trigger_data, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.db.ExecContext(ctx, s.q(query), id.String(), workflowID, data, string(models.ExecutionStatusRunning), time.Now().UTC())
	if err != nil {
		return "", persistence.NewExecutionError("CreateRunning", id.String(), err)
	}

	return id.String(), nil
}

// lockRunning checks, inside tx, that the execution exists and is not terminal.
func (s *Store) lockRunning(ctx context.Context, tx *sql.Tx, executionID string) error {
	var status string

	err := tx.QueryRowContext(ctx, s.q(`SELECT status FROM executions WHERE id = $1`), executionID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrExecutionNotFound
		}

		return err
	}

	if models.ExecutionStatus(status).IsTerminal() {
		return persistence.ErrExecutionFinalized
	}

	return nil
}

func (s *Store) upsertOutcome(ctx context.Context, tx *sql.Tx, executionID string, outcome models.ActionOutcome) error {
	result, err := marshalJSON(outcome.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome result: %w", err)
	}

	query := `
		INSERT INTO execution_outcomes (execution_id, action_index, action_type, success, result, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (execution_id, action_index) DO UPDATE SET
			action_type = EXCLUDED.action_type,
			success = EXCLUDED.success,
			result = EXCLUDED.result,
			error_message = EXCLUDED.error_message,
			duration_ms = EXCLUDED.duration_ms
	`

	_, err = tx.ExecContext(ctx, s.q(query),
		executionID,
		outcome.Index,
		outcome.ActionType,
		outcome.Success,
		result,
		outcome.Error,
		outcome.DurationMs,
	)

	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(tx)
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *Store) AppendOutcome(ctx context.Context, executionID string, outcome models.ActionOutcome) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockRunning(ctx, tx, executionID); err != nil {
			return err
		}

		return s.upsertOutcome(ctx, tx, executionID, outcome)
	})
	if err != nil {
		return persistence.NewExecutionError("AppendOutcome", executionID, err)
	}

	return nil
}

// Finalize writes the terminal status and the authoritative outcome list in one transaction.
func (s *Store) Finalize(ctx context.Context, executionID string, status models.ExecutionStatus, outcomes []models.ActionOutcome, executionTimeMs int64, errorMessage string) error {
	if err := persistence.CheckTerminal(status); err != nil {
		return persistence.NewExecutionError("Finalize", executionID, err)
	}

	var errMsg sql.NullString
	if errorMessage != "" {
		errMsg = sql.NullString{String: errorMessage, Valid: true}
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockRunning(ctx, tx, executionID); err != nil {
			return err
		}

		for _, outcome := range outcomes {
			if err := s.upsertOutcome(ctx, tx, executionID, outcome); err != nil {
				return err
			}
		}

		query := `
			UPDATE executions
			SET status = $2, completed_at = $3, execution_time_ms = $4, error_message = $5
			WHERE id = $1 AND status = $6
		`

		res, err := tx.ExecContext(ctx, s.q(query),
			executionID,
			string(status),
			time.Now().UTC(),
			executionTimeMs,
			errMsg,
			string(models.ExecutionStatusRunning),
		)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if affected == 0 {
			return persistence.ErrExecutionFinalized
		}

		return nil
	})
	if err != nil {
		return persistence.NewExecutionError("Finalize", executionID, err)
	}

	return nil
}

const executionColumns = `
	id
  , workflow_id
  , trigger_data
  , status
  , started_at
  , completed_at
  , execution_time_ms
  , error_message`

func (s *Store) ExecutionByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	record, err := scanExecution(s.db.QueryRowContext(ctx, s.q(`SELECT`+executionColumns+` FROM executions WHERE id = $1`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	err = s.loadOutcomes(ctx, record)
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return record, nil
}

func (s *Store) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	query := `SELECT` + executionColumns + ` FROM executions WHERE workflow_id = $1 ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		record, err := scanExecution(rows)
		if err != nil {
			s.closeRows(ctx, rows)

			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	s.closeRows(ctx, rows)

	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	// Outcomes are loaded after the cursor is closed so single-connection pools do not deadlock.
	for _, record := range records {
		if err := s.loadOutcomes(ctx, record); err != nil {
			return nil, err
		}
	}

	return records, nil
}

func scanExecution(row scanner) (*models.ExecutionRecord, error) {
	var (
		record          models.ExecutionRecord
		triggerData     []byte
		status          string
		completedAt     sql.NullTime
		executionTimeMs sql.NullInt64
		errorMessage    sql.NullString
	)

	err := row.Scan(
		&record.ID,
		&record.WorkflowID,
		&triggerData,
		&status,
		&record.StartedAt,
		&completedAt,
		&executionTimeMs,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	record.Status = models.ExecutionStatus(status)

	if err := unmarshalJSON(triggerData, &record.TriggerData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
	}

	if completedAt.Valid {
		t := completedAt.Time
		record.CompletedAt = &t
	}

	if executionTimeMs.Valid {
		ms := executionTimeMs.Int64
		record.ExecutionTimeMs = &ms
	}

	if errorMessage.Valid {
		msg := errorMessage.String
		record.ErrorMessage = &msg
	}

	return &record, nil
}

func (s *Store) loadOutcomes(ctx context.Context, record *models.ExecutionRecord) error {
	query := `
		SELECT action_index, action_type, success, result, error_message, duration_ms
		FROM execution_outcomes
		WHERE execution_id = $1
		ORDER BY action_index
	`

	rows, err := s.db.QueryContext(ctx, s.q(query), record.ID)
	if err != nil {
		return fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer s.closeRows(ctx, rows)

	record.Outcomes = make([]models.ActionOutcome, 0)

	for rows.Next() {
		var (
			outcome models.ActionOutcome
			result  []byte
		)

		err := rows.Scan(&outcome.Index, &outcome.ActionType, &outcome.Success, &result, &outcome.Error, &outcome.DurationMs)
		if err != nil {
			return fmt.Errorf("failed to scan outcome: %w", err)
		}

		if err := unmarshalJSON(result, &outcome.Result); err != nil {
			return fmt.Errorf("failed to unmarshal outcome result: %w", err)
		}

		record.Outcomes = append(record.Outcomes, outcome)
	}

	return rows.Err()
}
