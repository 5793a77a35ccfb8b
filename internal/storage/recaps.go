package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/model"
)

// SaveRecap inserts a daily recap. The unique (batch_id, recap_date) index
// makes the insert first-writer-wins: the returned bool is false when the
// date was already recapped, which callers treat as a skip, not an error.
func (s *SQLiteStorage) SaveRecap(ctx context.Context, recap *model.DailyRecap) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if recap == nil {
		return false, fmt.Errorf("%w: recap", ErrNilParameter)
	}
	if err := recap.Validate(); err != nil {
		return false, err
	}
	if err := validateID(recap.BatchID, "batch id"); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO daily_recaps (
			batch_id, recap_date, recorded_at, opening_gravity, closing_gravity,
			gravity_delta, avg_temperature, temp_min, temp_max, temp_unit,
			reading_count, day_number
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, recap.BatchID, recap.Date, recap.RecordedAt.UTC(), recap.OpeningGravity,
		recap.ClosingGravity, recap.GravityDelta, recap.AvgTemperature,
		recap.TempMin, recap.TempMax, nullString(string(recap.TempUnit)),
		recap.ReadingCount, recap.DayNumber)
	if err != nil {
		return false, fmt.Errorf("failed to save recap: %w", wrapBusy(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if id, idErr := result.LastInsertId(); idErr == nil {
		recap.ID = id
	}
	return true, nil
}

// GetRecaps returns a batch's recaps, newest date first.
func (s *SQLiteStorage) GetRecaps(ctx context.Context, batchID int64) ([]model.DailyRecap, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, recap_date, recorded_at, opening_gravity,
		       closing_gravity, gravity_delta, avg_temperature, temp_min,
		       temp_max, temp_unit, reading_count, day_number
		FROM daily_recaps WHERE batch_id = ? ORDER BY recap_date DESC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recaps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recaps []model.DailyRecap
	for rows.Next() {
		var r model.DailyRecap
		var unit sql.NullString
		var recordedAt time.Time
		scanErr := rows.Scan(&r.ID, &r.BatchID, &r.Date, &recordedAt,
			&r.OpeningGravity, &r.ClosingGravity, &r.GravityDelta,
			&r.AvgTemperature, &r.TempMin, &r.TempMax, &unit,
			&r.ReadingCount, &r.DayNumber)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan recap: %w", scanErr)
		}
		r.TempUnit = model.TempUnit(unit.String)
		r.RecordedAt = recordedAt.UTC()
		recaps = append(recaps, r)
	}
	return recaps, rows.Err()
}

// RecapExists reports whether a recap already covers the date.
func (s *SQLiteStorage) RecapExists(ctx context.Context, batchID int64, date string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return false, err
	}
	if err := validateString(date, "date"); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM daily_recaps WHERE batch_id = ? AND recap_date = ?
	`, batchID, date).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recap: %w", err)
	}
	return count > 0, nil
}

// DeleteRecap invalidates a date's recap so the generator can rebuild it.
// Used by the cleanup workflow after exclusions change a date's readings.
func (s *SQLiteStorage) DeleteRecap(ctx context.Context, batchID int64, date string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return deleteRecap(ctx, s.db, batchID, date)
}

func deleteRecap(ctx context.Context, db execer, batchID int64, date string) error {
	if err := validateID(batchID, "batch id"); err != nil {
		return err
	}
	if err := validateString(date, "date"); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, `
		DELETE FROM daily_recaps WHERE batch_id = ? AND recap_date = ?
	`, batchID, date)
	if err != nil {
		return fmt.Errorf("failed to delete recap: %w", wrapBusy(err))
	}
	return nil
}
