package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
)

// SaveAlert persists a detected anomaly and returns its ID.
func (s *SQLiteStorage) SaveAlert(ctx context.Context, alert *model.Alert) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if alert == nil {
		return 0, fmt.Errorf("%w: alert", ErrNilParameter)
	}
	if err := alert.Validate(); err != nil {
		return 0, err
	}
	if err := validateID(alert.BatchID, "batch id"); err != nil {
		return 0, err
	}

	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (batch_id, alert_type, severity, message, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, alert.BatchID, alert.Type, alert.Severity, alert.Message,
		alert.CreatedAt, alert.ResolvedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to save alert: %w", wrapBusy(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get alert id: %w", err)
	}
	alert.ID = id
	return id, nil
}

// HasRecentUnresolvedAlert reports whether an unresolved alert of the given
// type exists since the cutoff. The ingest workflow uses this to avoid
// re-raising the same condition on every reading.
func (s *SQLiteStorage) HasRecentUnresolvedAlert(ctx context.Context, batchID int64, alertType model.AlertType, since time.Time) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM alerts
		WHERE batch_id = ? AND alert_type = ? AND resolved_at IS NULL AND created_at >= ?
	`, batchID, alertType, since.UTC()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check alerts: %w", err)
	}
	return count > 0, nil
}

// ListAlerts returns a batch's alerts newest first.
func (s *SQLiteStorage) ListAlerts(ctx context.Context, batchID int64, unresolvedOnly bool) ([]model.Alert, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, batch_id, alert_type, severity, message, created_at, resolved_at
		FROM alerts WHERE batch_id = ?`
	if unresolvedOnly {
		query += " AND resolved_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var createdAt time.Time
		scanErr := rows.Scan(&a.ID, &a.BatchID, &a.Type, &a.Severity,
			&a.Message, &createdAt, &a.ResolvedAt)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", scanErr)
		}
		a.CreatedAt = createdAt.UTC()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks an alert acknowledged.
func (s *SQLiteStorage) ResolveAlert(ctx context.Context, alertID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(alertID, "alert id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL
	`, time.Now().UTC(), alertID)
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", wrapBusy(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unresolved alert %d: %w", alertID, common.ErrNotFound)
	}
	return nil
}
