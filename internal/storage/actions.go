package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
)

// CreateAction attaches an action to a phase and returns its ID.
func (s *SQLiteStorage) CreateAction(ctx context.Context, action *model.PhaseAction) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if action == nil {
		return 0, fmt.Errorf("%w: action", ErrNilParameter)
	}
	if err := action.Validate(); err != nil {
		return 0, err
	}
	if err := validateID(action.PhaseID, "phase id"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO phase_actions (
			phase_id, name, note, sort_order, interval_days, due_at,
			trigger_gravity, trigger_attenuation, last_completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, action.PhaseID, action.Name, action.Note, action.SortOrder,
		action.IntervalDays, action.DueAt, action.TriggerGravity,
		action.TriggerAttenuation, action.LastCompletedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to create action: %w", wrapBusy(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get action id: %w", err)
	}
	action.ID = id
	return id, nil
}

// GetActionsByPhase returns a phase's actions in explicit order.
func (s *SQLiteStorage) GetActionsByPhase(ctx context.Context, phaseID int64) ([]model.PhaseAction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(phaseID, "phase id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, phase_id, name, note, sort_order, interval_days, due_at,
		       trigger_gravity, trigger_attenuation, last_completed_at
		FROM phase_actions WHERE phase_id = ? ORDER BY sort_order
	`, phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var actions []model.PhaseAction
	for rows.Next() {
		var a model.PhaseAction
		scanErr := rows.Scan(&a.ID, &a.PhaseID, &a.Name, &a.Note, &a.SortOrder,
			&a.IntervalDays, &a.DueAt, &a.TriggerGravity,
			&a.TriggerAttenuation, &a.LastCompletedAt)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan action: %w", scanErr)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// MarkActionCompleted records when an action was last done, which feeds the
// interval-based due time.
func (s *SQLiteStorage) MarkActionCompleted(ctx context.Context, actionID int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(actionID, "action id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE phase_actions SET last_completed_at = ? WHERE id = ?
	`, at.UTC(), actionID)
	if err != nil {
		return fmt.Errorf("failed to mark action completed: %w", wrapBusy(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("action %d: %w", actionID, common.ErrNotFound)
	}
	return nil
}
