package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
)

// CreateBatch inserts a new batch and returns its ID.
func (s *SQLiteStorage) CreateBatch(ctx context.Context, batch *model.Batch) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if batch == nil {
		return 0, fmt.Errorf("%w: batch", ErrNilParameter)
	}
	if err := batch.Validate(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (
			name, style, status, original_gravity, expected_final_gravity,
			current_phase_id, timezone, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, batch.Name, batch.Style, batch.Status, batch.OriginalGravity,
		batch.ExpectedFinalGravity, batch.CurrentPhaseID, batch.Timezone,
		batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create batch: %w", wrapBusy(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get batch id: %w", err)
	}
	batch.ID = id
	return id, nil
}

// GetBatch retrieves a batch by ID.
func (s *SQLiteStorage) GetBatch(ctx context.Context, id int64) (*model.Batch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "batch id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, style, status, original_gravity, expected_final_gravity,
		       current_phase_id, timezone, created_at, updated_at
		FROM batches WHERE id = ?
	`, id)

	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// ListBatches returns all batches, most recently created first.
func (s *SQLiteStorage) ListBatches(ctx context.Context) ([]model.Batch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, style, status, original_gravity, expected_final_gravity,
		       current_phase_id, timezone, created_at, updated_at
		FROM batches ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []model.Batch
	for rows.Next() {
		batch, scanErr := scanBatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", scanErr)
		}
		batches = append(batches, *batch)
	}
	return batches, rows.Err()
}

// UpdateBatch persists mutable batch fields.
func (s *SQLiteStorage) UpdateBatch(ctx context.Context, batch *model.Batch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if batch == nil {
		return fmt.Errorf("%w: batch", ErrNilParameter)
	}
	if err := validateID(batch.ID, "batch id"); err != nil {
		return err
	}
	if err := batch.Validate(); err != nil {
		return err
	}

	batch.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE batches
		SET name = ?, style = ?, status = ?, original_gravity = ?,
		    expected_final_gravity = ?, current_phase_id = ?, timezone = ?,
		    updated_at = ?
		WHERE id = ?
	`, batch.Name, batch.Style, batch.Status, batch.OriginalGravity,
		batch.ExpectedFinalGravity, batch.CurrentPhaseID, batch.Timezone,
		batch.UpdatedAt, batch.ID)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", wrapBusy(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("batch %d: %w", batch.ID, common.ErrNotFound)
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (*model.Batch, error) {
	var b model.Batch
	err := row.Scan(&b.ID, &b.Name, &b.Style, &b.Status, &b.OriginalGravity,
		&b.ExpectedFinalGravity, &b.CurrentPhaseID, &b.Timezone,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
