package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
)

// SaveReadings inserts readings, skipping duplicates by hash, and returns how
// many rows were actually inserted.
func (s *SQLiteStorage) SaveReadings(ctx context.Context, readings []model.Reading) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateReadings(readings); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO readings (
			batch_id, hash, gravity, temperature, temp_unit, source,
			recorded_at, is_excluded, exclude_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for i := range readings {
		r := &readings[i]
		if r.Hash == "" {
			r.Hash = r.GenerateHash()
		}
		if r.Source == "" {
			r.Source = "manual"
		}

		result, execErr := stmt.ExecContext(ctx, r.BatchID, r.Hash, r.Gravity,
			r.Temperature, nullString(string(r.TempUnit)), r.Source,
			r.RecordedAt.UTC(), r.IsExcluded, string(r.ExcludeReason))
		if execErr != nil {
			return inserted, fmt.Errorf("failed to insert reading: %w", wrapBusy(execErr))
		}

		affected, affErr := result.RowsAffected()
		if affErr != nil {
			return inserted, fmt.Errorf("failed to check insert result: %w", affErr)
		}
		if affected > 0 {
			inserted++
			if id, idErr := result.LastInsertId(); idErr == nil {
				r.ID = id
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("failed to commit readings: %w", err)
	}
	return inserted, nil
}

// GetReadings returns a batch's readings per the filter. The zero filter
// returns all non-excluded readings ascending by time.
func (s *SQLiteStorage) GetReadings(ctx context.Context, batchID int64, filter service.ReadingFilter) ([]model.Reading, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, batch_id, hash, gravity, temperature, temp_unit, source,
		       recorded_at, is_excluded, exclude_reason, created_at
		FROM readings WHERE batch_id = ?`)
	args := []any{batchID}

	if !filter.IncludeExcluded {
		sb.WriteString(" AND is_excluded = 0")
	}
	if filter.Since != nil {
		sb.WriteString(" AND recorded_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		sb.WriteString(" AND recorded_at <= ?")
		args = append(args, filter.Until.UTC())
	}
	if filter.Descending {
		sb.WriteString(" ORDER BY recorded_at DESC")
	} else {
		sb.WriteString(" ORDER BY recorded_at ASC")
	}
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var readings []model.Reading
	for rows.Next() {
		reading, scanErr := scanReading(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		readings = append(readings, *reading)
	}
	return readings, rows.Err()
}

// GetLatestReading returns the batch's newest non-excluded reading, or nil if
// none exists.
func (s *SQLiteStorage) GetLatestReading(ctx context.Context, batchID int64) (*model.Reading, error) {
	readings, err := s.GetReadings(ctx, batchID, service.ReadingFilter{Descending: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

// SetReadingExclusion flips a reading's exclusion state. Exclusion is
// reversible; readings are never deleted.
func (s *SQLiteStorage) SetReadingExclusion(ctx context.Context, readingID int64, excluded bool, reason model.ExcludeReason) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return setReadingExclusion(ctx, s.db, readingID, excluded, reason)
}

func setReadingExclusion(ctx context.Context, db execer, readingID int64, excluded bool, reason model.ExcludeReason) error {
	if err := validateID(readingID, "reading id"); err != nil {
		return err
	}
	if !excluded {
		reason = model.ExcludeNone
	}

	result, err := db.ExecContext(ctx, `
		UPDATE readings SET is_excluded = ?, exclude_reason = ? WHERE id = ?
	`, excluded, string(reason), readingID)
	if err != nil {
		return fmt.Errorf("failed to update reading exclusion: %w", wrapBusy(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reading %d: %w", readingID, common.ErrNotFound)
	}
	return nil
}

func scanReading(row scanner) (*model.Reading, error) {
	var r model.Reading
	var unit sql.NullString
	var reason string
	var recordedAt, createdAt time.Time

	err := row.Scan(&r.ID, &r.BatchID, &r.Hash, &r.Gravity, &r.Temperature,
		&unit, &r.Source, &recordedAt, &r.IsExcluded, &reason, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reading: %w", err)
	}

	r.TempUnit = model.TempUnit(unit.String)
	r.ExcludeReason = model.ExcludeReason(reason)
	r.RecordedAt = recordedAt.UTC()
	r.CreatedAt = createdAt.UTC()
	return &r, nil
}
