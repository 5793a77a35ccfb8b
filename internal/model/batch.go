package model

import (
	"fmt"
	"strings"
	"time"
)

// BatchStyle describes what is fermenting.
type BatchStyle string

// Known batch styles.
const (
	StyleWine  BatchStyle = "wine"
	StyleBeer  BatchStyle = "beer"
	StyleMead  BatchStyle = "mead"
	StyleCider BatchStyle = "cider"
	StyleOther BatchStyle = "other"
)

// BatchStatus is the lifecycle state of a batch.
type BatchStatus string

// Batch lifecycle states.
const (
	BatchPlanning  BatchStatus = "planning"
	BatchActive    BatchStatus = "active"
	BatchCompleted BatchStatus = "completed"
	BatchArchived  BatchStatus = "archived"
)

// Batch is one fermentation run tracked through a sequence of phases.
type Batch struct {
	CreatedAt            time.Time
	UpdatedAt            time.Time
	OriginalGravity      *float64
	ExpectedFinalGravity *float64
	CurrentPhaseID       *int64
	Name                 string
	Style                BatchStyle
	Status               BatchStatus
	Timezone             string // IANA name used for day-boundary math
	ID                   int64
}

// Location resolves the batch timezone, falling back to UTC.
func (b *Batch) Location() *time.Location {
	if b.Timezone != "" {
		if loc, err := time.LoadLocation(b.Timezone); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Validate ensures the batch is storable.
func (b *Batch) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("batch name is required")
	}
	switch b.Style {
	case StyleWine, StyleBeer, StyleMead, StyleCider, StyleOther:
	default:
		return fmt.Errorf("invalid batch style %q", b.Style)
	}
	switch b.Status {
	case BatchPlanning, BatchActive, BatchCompleted, BatchArchived:
	default:
		return fmt.Errorf("invalid batch status %q", b.Status)
	}
	if b.OriginalGravity != nil && (*b.OriginalGravity < 0.900 || *b.OriginalGravity > 1.200) {
		return fmt.Errorf("original gravity %.4f outside plausible range", *b.OriginalGravity)
	}
	return nil
}
