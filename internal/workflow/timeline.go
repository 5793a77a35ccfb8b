package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/recap"
	"github.com/hbenedict/airlock/internal/service"
)

// LoadTimeline assembles the batch history view: durable daily recaps, logged
// events, and a consolidated rendering of whatever readings have not been
// recapped yet (always including today). Recap generation happens lazily
// here, on every timeline read.
func LoadTimeline(ctx context.Context, store service.Storage, batch model.Batch, now time.Time) ([]model.TimelineEntry, error) {
	gen := recap.NewGenerator(store)
	if _, err := gen.GenerateMissing(ctx, batch, now); err != nil {
		return nil, fmt.Errorf("failed to generate recaps: %w", err)
	}

	recaps, err := store.GetRecaps(ctx, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recaps: %w", err)
	}

	unrecapped, err := gen.UnrecappedReadings(ctx, batch)
	if err != nil {
		return nil, err
	}

	events, err := store.GetEvents(ctx, batch.ID, feedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	entries := recap.Consolidate(unrecapped, batch.Location())
	for _, r := range recaps {
		entries = append(entries, model.RecapEntry{Recap: r})
	}
	for _, e := range events {
		entries = append(entries, model.EventEntry{Event: e})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].EntryTime().After(entries[j].EntryTime())
	})
	return entries, nil
}
