// Package analysis holds the pure analysis core: outlier detection over a
// reading series, recursive completion-criteria evaluation, and rule-based
// anomaly alerts. Nothing here performs I/O or keeps state; callers load the
// data, bound the windows, and persist any decisions.
package analysis

import (
	"time"

	"github.com/hbenedict/airlock/internal/model"
)

// Entry is one item of the timeline feed the evaluator and alert detector
// consume: either a reading (Gravity set) or a logged event (EventName set).
// Feeds are ordered newest first.
type Entry struct {
	RecordedAt  time.Time
	Gravity     *float64
	Temperature *float64
	EventName   string
}

// ReadingEntry builds a feed entry from a reading.
func ReadingEntry(r model.Reading) Entry {
	g := r.Gravity
	return Entry{
		RecordedAt:  r.RecordedAt,
		Gravity:     &g,
		Temperature: r.Temperature,
	}
}

// EventEntry builds a feed entry from a batch event.
func EventEntry(e model.BatchEvent) Entry {
	return Entry{
		RecordedAt: e.OccurredAt,
		EventName:  e.Name,
	}
}

// IsReading reports whether the entry carries a gravity observation.
func (e Entry) IsReading() bool { return e.Gravity != nil }
