package model

import (
	"fmt"
	"strings"
	"time"
)

// BatchEvent is a logged action on a batch: a racking, a stir, a nutrient
// addition, or a free-form note. Events feed action_count criteria and the
// timeline.
type BatchEvent struct {
	OccurredAt time.Time
	Name       string
	Note       string
	ID         int64
	BatchID    int64
}

// Validate ensures the event is storable.
func (e *BatchEvent) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("event name is required")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("event requires an occurrence time")
	}
	return nil
}
