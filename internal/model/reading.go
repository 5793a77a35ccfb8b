// Package model defines the core domain types for fermentation tracking.
package model

import (
	"crypto/sha256"
	"fmt"
	"math"
	"time"
)

// TempUnit is the unit a temperature was recorded in.
type TempUnit string

// Supported temperature units.
const (
	UnitFahrenheit TempUnit = "F"
	UnitCelsius    TempUnit = "C"
)

// ExcludeReason records why a reading was excluded from analysis.
type ExcludeReason string

// Exclusion reasons. Readings are never deleted; exclusion is a reversible
// state set by the cleanup workflow.
const (
	ExcludeNone          ExcludeReason = ""
	ExcludeHeadTrim      ExcludeReason = "head_trim"
	ExcludeTailTrim      ExcludeReason = "tail_trim"
	ExcludeOutlierAuto   ExcludeReason = "outlier_auto"
	ExcludeOutlierManual ExcludeReason = "outlier_manual"
)

// Reading is a single gravity/temperature observation, from manual entry,
// CSV import, or a polled hydrometer.
type Reading struct {
	RecordedAt    time.Time
	CreatedAt     time.Time
	Temperature   *float64
	Source        string // "manual", "import", or a device name
	Hash          string
	ExcludeReason ExcludeReason
	TempUnit      TempUnit
	ID            int64
	BatchID       int64
	Gravity       float64
	IsExcluded    bool
}

// GenerateHash creates a stable hash for duplicate detection across imports.
func (r *Reading) GenerateHash() string {
	data := fmt.Sprintf("%d:%s:%.4f:%s",
		r.BatchID,
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.Gravity,
		r.Source)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Validate ensures the reading is storable.
func (r *Reading) Validate() error {
	if r.RecordedAt.IsZero() {
		return fmt.Errorf("reading requires a recorded time")
	}
	if math.IsNaN(r.Gravity) || r.Gravity <= 0 {
		return fmt.Errorf("invalid gravity %v", r.Gravity)
	}
	if r.Gravity < 0.900 || r.Gravity > 1.200 {
		return fmt.Errorf("gravity %.4f outside plausible range 0.900-1.200", r.Gravity)
	}
	if r.Temperature != nil {
		switch r.TempUnit {
		case UnitFahrenheit, UnitCelsius:
		default:
			return fmt.Errorf("invalid temperature unit %q", r.TempUnit)
		}
	}
	return nil
}

// OutlierFlag is an ephemeral suggestion produced by the outlier detector.
// Flags are recomputed on every cleanup review and never persisted.
type OutlierFlag struct {
	RecordedAt time.Time
	Reason     ExcludeReason
	ReadingID  int64
	Gravity    float64
	Deviation  float64 // signed SG distance from the reference statistic
}
