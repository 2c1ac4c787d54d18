// Package repository provides data access for execution history.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coding-agent/backend/internal/model"
)

// ExecutionRepository provides data access for execution records.
type ExecutionRepository struct {
	db *sql.DB
}

// NewExecutionRepository creates a new ExecutionRepository.
func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Record inserts a completed execution into the history.
func (r *ExecutionRepository) Record(ctx context.Context, rec model.ExecutionRecord) error {
	query := `
		INSERT INTO executions (id, client_id, language, success, execution_time, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.ClientID,
		rec.Language,
		rec.Success,
		rec.ExecutionTime,
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	return nil
}

// ListRecent retrieves the most recent executions, newest first.
func (r *ExecutionRepository) ListRecent(ctx context.Context, limit int) ([]*model.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, client_id, language, success, execution_time, error, created_at
		FROM executions
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var records []*model.ExecutionRecord
	for rows.Next() {
		rec := &model.ExecutionRecord{}
		var clientID sql.NullString
		var errMsg sql.NullString

		err := rows.Scan(
			&rec.ID,
			&clientID,
			&rec.Language,
			&rec.Success,
			&rec.ExecutionTime,
			&errMsg,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		if clientID.Valid {
			rec.ClientID = clientID.String
		}
		if errMsg.Valid {
			rec.Error = errMsg.String
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return records, nil
}

// CountByOutcome returns the number of recorded executions with the given outcome.
func (r *ExecutionRepository) CountByOutcome(ctx context.Context, success bool) (int, error) {
	query := `SELECT COUNT(*) FROM executions WHERE success = ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, success).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return count, nil
}
