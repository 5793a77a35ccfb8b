// Package workflow wires the pure analysis core to storage: reading ingest
// with alert scanning, phase status, timeline assembly, cleanup review, and
// phase advancement.
package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/hbenedict/airlock/internal/analysis"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
)

// feedLimit bounds how much recent history the evaluator and alert detector
// see. The core is linear in feed size; callers keep it small.
const feedLimit = 200

// loadFeed assembles the newest-first entry feed of recent readings and
// events for a batch.
func loadFeed(ctx context.Context, store service.Storage, batchID int64) ([]analysis.Entry, error) {
	readings, err := store.GetReadings(ctx, batchID, service.ReadingFilter{
		Descending: true,
		Limit:      feedLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}

	events, err := store.GetEvents(ctx, batchID, feedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	entries := make([]analysis.Entry, 0, len(readings)+len(events))
	for _, r := range readings {
		entries = append(entries, analysis.ReadingEntry(r))
	}
	for _, e := range events {
		entries = append(entries, analysis.EventEntry(e))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RecordedAt.After(entries[j].RecordedAt)
	})
	return entries, nil
}

// evalContext builds the gravity context for criteria evaluation from the
// batch record and its newest reading.
func evalContext(ctx context.Context, store service.Storage, batch model.Batch) (analysis.EvalContext, error) {
	ec := analysis.EvalContext{
		OriginalGravity: batch.OriginalGravity,
	}
	if batch.ExpectedFinalGravity != nil {
		ec.ExpectedFinalGravity = *batch.ExpectedFinalGravity
	}

	latest, err := store.GetLatestReading(ctx, batch.ID)
	if err != nil {
		return ec, fmt.Errorf("failed to load latest reading: %w", err)
	}
	if latest != nil {
		g := latest.Gravity
		ec.LatestGravity = &g
	}
	return ec, nil
}
