// Package recap compresses a batch's reading history: durable once-per-day
// summaries and ephemeral hourly buckets for whatever has not been recapped
// yet.
package recap

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
)

// BuildDailyRecap computes the durable summary for one calendar date from
// that date's non-excluded readings, ordered ascending by time. Pure; the
// generator driver handles persistence and idempotency.
func BuildDailyRecap(batch model.Batch, date string, readings []model.Reading) (model.DailyRecap, error) {
	loc := batch.Location()
	day, err := time.ParseInLocation(model.DateLayout, date, loc)
	if err != nil {
		return model.DailyRecap{}, fmt.Errorf("invalid recap date %q: %w", date, err)
	}
	if len(readings) == 0 {
		return model.DailyRecap{}, fmt.Errorf("no readings for %s", date)
	}

	// Backdate to the end of the day so the recap sorts among same-day
	// entries.
	endOfDay := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, loc)

	opening := readings[0].Gravity
	closing := readings[len(readings)-1].Gravity

	r := model.DailyRecap{
		BatchID:        batch.ID,
		Date:           date,
		RecordedAt:     endOfDay,
		OpeningGravity: opening,
		ClosingGravity: closing,
		GravityDelta:   round4(opening - closing),
		ReadingCount:   len(readings),
		DayNumber:      daysBetween(batch.CreatedAt, endOfDay) + 1,
	}

	var temps []float64
	for _, reading := range readings {
		if reading.Temperature != nil {
			temps = append(temps, *reading.Temperature)
			if r.TempUnit == "" {
				r.TempUnit = reading.TempUnit
			}
		}
	}
	if len(temps) > 0 {
		avg := mean(temps)
		minT, maxT := minMax(temps)
		r.AvgTemperature = &avg
		r.TempMin = &minT
		r.TempMax = &maxT
	}

	return r, nil
}

// Generator lazily fills in missing daily recaps whenever the timeline is
// read.
type Generator struct {
	store service.Storage
}

// NewGenerator creates a recap generator over the given storage.
func NewGenerator(store service.Storage) *Generator {
	return &Generator{store: store}
}

// GenerateMissing creates a recap for every calendar date that has readings
// but no recap yet, skipping the current date in the batch timezone since
// today's data is incomplete by definition. Safe to call redundantly: the
// storage layer's unique (batch, date) constraint makes the insert
// first-writer-wins, and an already-recapped date is counted as skipped, not
// an error.
func (g *Generator) GenerateMissing(ctx context.Context, batch model.Batch, now time.Time) (int, error) {
	readings, err := g.store.GetReadings(ctx, batch.ID, service.ReadingFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to load readings: %w", err)
	}

	loc := batch.Location()
	today := now.In(loc).Format(model.DateLayout)
	byDate := groupByDate(readings, loc)

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		if date == today {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)

	created := 0
	for _, date := range dates {
		exists, err := g.store.RecapExists(ctx, batch.ID, date)
		if err != nil {
			return created, fmt.Errorf("failed to check recap for %s: %w", date, err)
		}
		if exists {
			continue
		}

		recap, err := BuildDailyRecap(batch, date, byDate[date])
		if err != nil {
			return created, err
		}

		var inserted bool
		err = common.WithRetry(ctx, func() error {
			var saveErr error
			inserted, saveErr = g.store.SaveRecap(ctx, &recap)
			return saveErr
		}, service.RetryOptions{})
		if err != nil {
			return created, fmt.Errorf("failed to save recap for %s: %w", date, err)
		}
		if !inserted {
			// Lost the race to a concurrent timeline read; the recap exists.
			slog.Debug("recap already present, skipping", "batch", batch.ID, "date", date)
			continue
		}
		created++
	}
	return created, nil
}

// UnrecappedReadings returns the non-excluded readings, ascending, from every
// date that still lacks a durable recap. This is the consolidator's input.
func (g *Generator) UnrecappedReadings(ctx context.Context, batch model.Batch) ([]model.Reading, error) {
	readings, err := g.store.GetReadings(ctx, batch.ID, service.ReadingFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}

	loc := batch.Location()
	var out []model.Reading
	recapped := make(map[string]bool)
	for _, r := range readings {
		date := r.RecordedAt.In(loc).Format(model.DateLayout)
		exists, ok := recapped[date]
		if !ok {
			exists, err = g.store.RecapExists(ctx, batch.ID, date)
			if err != nil {
				return nil, fmt.Errorf("failed to check recap for %s: %w", date, err)
			}
			recapped[date] = exists
		}
		if !exists {
			out = append(out, r)
		}
	}
	return out, nil
}

func groupByDate(readings []model.Reading, loc *time.Location) map[string][]model.Reading {
	byDate := make(map[string][]model.Reading)
	for _, r := range readings {
		date := r.RecordedAt.In(loc).Format(model.DateLayout)
		byDate[date] = append(byDate[date], r)
	}
	return byDate
}

func daysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minMax(values []float64) (minV, maxV float64) {
	minV, maxV = values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return minV, maxV
}
