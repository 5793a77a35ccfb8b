package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/model"
)

// SaveEvent records a logged batch action and returns its ID.
func (s *SQLiteStorage) SaveEvent(ctx context.Context, event *model.BatchEvent) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if event == nil {
		return 0, fmt.Errorf("%w: event", ErrNilParameter)
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}
	if err := validateID(event.BatchID, "batch id"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_events (batch_id, name, note, occurred_at)
		VALUES (?, ?, ?, ?)
	`, event.BatchID, event.Name, event.Note, event.OccurredAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to save event: %w", wrapBusy(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event id: %w", err)
	}
	event.ID = id
	return id, nil
}

// GetEvents returns a batch's events newest first, bounded by limit when
// positive.
func (s *SQLiteStorage) GetEvents(ctx context.Context, batchID int64, limit int) ([]model.BatchEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(batchID, "batch id"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, batch_id, name, note, occurred_at
		FROM batch_events WHERE batch_id = ? ORDER BY occurred_at DESC`
	args := []any{batchID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.BatchEvent
	for rows.Next() {
		var e model.BatchEvent
		var occurredAt time.Time
		if scanErr := rows.Scan(&e.ID, &e.BatchID, &e.Name, &e.Note, &occurredAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan event: %w", scanErr)
		}
		e.OccurredAt = occurredAt.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
