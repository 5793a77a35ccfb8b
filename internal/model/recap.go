package model

import (
	"fmt"
	"time"
)

// DateLayout is the storage form of a recap's calendar date.
const DateLayout = "2006-01-02"

// DailyRecap is a durable once-per-day summary that replaces dozens of raw
// readings in the displayed history. At most one exists per (batch, date);
// RecordedAt is backdated to the end of the date so it sorts among same-day
// entries.
type DailyRecap struct {
	RecordedAt     time.Time
	AvgTemperature *float64
	TempMin        *float64
	TempMax        *float64
	Date           string // calendar date in the batch timezone, DateLayout
	TempUnit       TempUnit
	ID             int64
	BatchID        int64
	OpeningGravity float64
	ClosingGravity float64
	GravityDelta   float64 // opening minus closing, rounded to 4 decimals
	ReadingCount   int
	DayNumber      int // ordinal day since batch creation, 1-based
}

// Validate ensures the recap is storable.
func (r *DailyRecap) Validate() error {
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("invalid recap date %q: %w", r.Date, err)
	}
	if r.ReadingCount <= 0 {
		return fmt.Errorf("recap requires at least one reading")
	}
	if r.DayNumber <= 0 {
		return fmt.Errorf("recap day number must be positive")
	}
	return nil
}

// HourlySummary is the ephemeral hourly analog of a recap, produced by the
// timeline consolidator for readings newer than the last durable recap. It is
// never persisted and has no identity.
type HourlySummary struct {
	HourStart      time.Time
	AvgTemperature *float64
	Label          string // e.g. "11pm – 12am"
	TempUnit       TempUnit
	StartGravity   float64
	EndGravity     float64
	ReadingCount   int
}
