package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
)

// CreatePhases inserts a batch's phases in bulk, as batch creation and the
// setup wizard do.
func (s *SQLiteStorage) CreatePhases(ctx context.Context, batchID int64, phases []model.Phase) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return err
	}
	if len(phases) == 0 {
		return fmt.Errorf("%w: phases", ErrEmptySlice)
	}
	for i := range phases {
		if err := phases[i].Validate(); err != nil {
			return fmt.Errorf("phase at index %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO phases (
			batch_id, name, status, sort_order, started_at, completed_at,
			expected_duration_days, target_temp_low, target_temp_high,
			target_temp_unit, criteria
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range phases {
		p := &phases[i]
		criteriaJSON, marshalErr := marshalCriteriaColumn(p.Criteria)
		if marshalErr != nil {
			return marshalErr
		}

		result, execErr := stmt.ExecContext(ctx, batchID, p.Name, p.Status,
			p.SortOrder, p.StartedAt, p.CompletedAt, p.ExpectedDurationDays,
			p.TargetTempLow, p.TargetTempHigh, nullString(string(p.TargetTempUnit)),
			criteriaJSON)
		if execErr != nil {
			return fmt.Errorf("failed to insert phase %q: %w", p.Name, wrapBusy(execErr))
		}

		id, idErr := result.LastInsertId()
		if idErr != nil {
			return fmt.Errorf("failed to get phase id: %w", idErr)
		}
		p.ID = id
		p.BatchID = batchID
	}

	return tx.Commit()
}

// GetPhases returns a batch's phases in protocol order.
func (s *SQLiteStorage) GetPhases(ctx context.Context, batchID int64) ([]model.Phase, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, name, status, sort_order, started_at, completed_at,
		       expected_duration_days, target_temp_low, target_temp_high,
		       target_temp_unit, criteria
		FROM phases WHERE batch_id = ? ORDER BY sort_order
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get phases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var phases []model.Phase
	for rows.Next() {
		phase, scanErr := scanPhase(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		phases = append(phases, *phase)
	}
	return phases, rows.Err()
}

// GetActivePhase returns the batch's unique active phase, or ErrNoActivePhase.
func (s *SQLiteStorage) GetActivePhase(ctx context.Context, batchID int64) (*model.Phase, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, name, status, sort_order, started_at, completed_at,
		       expected_duration_days, target_temp_low, target_temp_high,
		       target_temp_unit, criteria
		FROM phases WHERE batch_id = ? AND status = ? ORDER BY sort_order LIMIT 1
	`, batchID, model.PhaseActive)
	if err != nil {
		return nil, fmt.Errorf("failed to get active phase: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return nil, rowsErr
		}
		return nil, common.ErrNoActivePhase
	}
	return scanPhase(rows)
}

// UpdatePhase persists mutable phase fields.
func (s *SQLiteStorage) UpdatePhase(ctx context.Context, phase *model.Phase) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if phase == nil {
		return fmt.Errorf("%w: phase", ErrNilParameter)
	}
	if err := validateID(phase.ID, "phase id"); err != nil {
		return err
	}
	if err := phase.Validate(); err != nil {
		return err
	}

	criteriaJSON, err := marshalCriteriaColumn(phase.Criteria)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE phases
		SET name = ?, status = ?, sort_order = ?, started_at = ?, completed_at = ?,
		    expected_duration_days = ?, target_temp_low = ?, target_temp_high = ?,
		    target_temp_unit = ?, criteria = ?
		WHERE id = ?
	`, phase.Name, phase.Status, phase.SortOrder, phase.StartedAt,
		phase.CompletedAt, phase.ExpectedDurationDays, phase.TargetTempLow,
		phase.TargetTempHigh, nullString(string(phase.TargetTempUnit)),
		criteriaJSON, phase.ID)
	if err != nil {
		return fmt.Errorf("failed to update phase: %w", wrapBusy(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("phase %d: %w", phase.ID, common.ErrNotFound)
	}
	return nil
}

func scanPhase(row scanner) (*model.Phase, error) {
	var p model.Phase
	var unit sql.NullString
	var criteriaJSON sql.NullString

	err := row.Scan(&p.ID, &p.BatchID, &p.Name, &p.Status, &p.SortOrder,
		&p.StartedAt, &p.CompletedAt, &p.ExpectedDurationDays,
		&p.TargetTempLow, &p.TargetTempHigh, &unit, &criteriaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to scan phase: %w", err)
	}

	p.TargetTempUnit = model.TempUnit(unit.String)
	if criteriaJSON.Valid && criteriaJSON.String != "" {
		criteria, unmarshalErr := model.UnmarshalCriteria([]byte(criteriaJSON.String))
		if unmarshalErr != nil {
			return nil, fmt.Errorf("phase %d: %w", p.ID, unmarshalErr)
		}
		p.Criteria = criteria
	}
	return &p, nil
}

// marshalCriteriaColumn encodes criteria for storage; nil criteria stores NULL.
func marshalCriteriaColumn(c model.CompletionCriteria) (any, error) {
	if c == nil {
		return nil, nil
	}
	data, err := model.MarshalCriteria(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal criteria: %w", err)
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
