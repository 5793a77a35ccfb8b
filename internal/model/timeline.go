package model

import "time"

// TimelineEntry is one row of the displayed batch history. It is a sum type:
// persisted readings, events, and recaps each have storage identity, while
// consolidated hourly summaries are computed on the fly and deliberately carry
// no ID, so callers cannot try to look one up or mutate it.
type TimelineEntry interface {
	// EntryTime is the instant the entry sorts by (newest first).
	EntryTime() time.Time
}

// ReadingEntry is a persisted reading shown verbatim.
type ReadingEntry struct {
	Reading Reading
}

// EntryTime implements TimelineEntry.
func (e ReadingEntry) EntryTime() time.Time { return e.Reading.RecordedAt }

// EventEntry is a persisted batch event.
type EventEntry struct {
	Event BatchEvent
}

// EntryTime implements TimelineEntry.
func (e EventEntry) EntryTime() time.Time { return e.Event.OccurredAt }

// RecapEntry is a persisted daily recap.
type RecapEntry struct {
	Recap DailyRecap
}

// EntryTime implements TimelineEntry.
func (e RecapEntry) EntryTime() time.Time { return e.Recap.RecordedAt }

// HourlyEntry is an ephemeral consolidated hour of readings.
type HourlyEntry struct {
	Summary HourlySummary
}

// EntryTime implements TimelineEntry.
func (e HourlyEntry) EntryTime() time.Time { return e.Summary.HourStart }
