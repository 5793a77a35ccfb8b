package model

import (
	"fmt"
	"strings"
	"time"
)

// PhaseStatus is the lifecycle state of a phase. At most one phase per batch
// is active at a time.
type PhaseStatus string

// Phase lifecycle states.
const (
	PhasePending   PhaseStatus = "pending"
	PhaseActive    PhaseStatus = "active"
	PhaseCompleted PhaseStatus = "completed"
	PhaseSkipped   PhaseStatus = "skipped"
)

// Phase is one stage of a batch's protocol (primary fermentation, secondary,
// aging, ...). Phases are totally ordered by SortOrder and advanced by the
// phase-advance workflow, never deleted.
type Phase struct {
	StartedAt            *time.Time
	CompletedAt          *time.Time
	ExpectedDurationDays *int
	TargetTempLow        *float64
	TargetTempHigh       *float64
	Criteria             CompletionCriteria
	Name                 string
	TargetTempUnit       TempUnit
	ID                   int64
	BatchID              int64
	SortOrder            int
	Status               PhaseStatus
}

// HasTempTarget reports whether both ends of the target temperature band are
// configured.
func (p *Phase) HasTempTarget() bool {
	return p.TargetTempLow != nil && p.TargetTempHigh != nil
}

// Validate ensures the phase is storable.
func (p *Phase) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("phase name is required")
	}
	switch p.Status {
	case PhasePending, PhaseActive, PhaseCompleted, PhaseSkipped:
	default:
		return fmt.Errorf("invalid phase status %q", p.Status)
	}
	if p.ExpectedDurationDays != nil && *p.ExpectedDurationDays <= 0 {
		return fmt.Errorf("expected duration must be positive")
	}
	if p.TargetTempLow != nil && p.TargetTempHigh != nil && *p.TargetTempLow > *p.TargetTempHigh {
		return fmt.Errorf("target temperature low must not exceed high")
	}
	if p.Criteria != nil {
		if err := ValidateCriteria(p.Criteria); err != nil {
			return fmt.Errorf("completion criteria: %w", err)
		}
	}
	return nil
}

// PhaseAction is a recurring or one-shot task attached to a phase. Exactly one
// scheduling mode applies: a repeat interval recomputed from the last
// completion, a fixed due date, or a gravity trigger.
type PhaseAction struct {
	DueAt              *time.Time
	LastCompletedAt    *time.Time
	IntervalDays       *int
	TriggerGravity     *float64
	TriggerAttenuation *float64
	Name               string
	Note               string
	ID                 int64
	PhaseID            int64
	SortOrder          int
}

// GravityTriggered reports whether the action is due based on gravity rather
// than time.
func (a *PhaseAction) GravityTriggered() bool {
	return a.TriggerGravity != nil || a.TriggerAttenuation != nil
}

// EffectiveDueAt computes the action's due time. An interval plus a last
// completion overrides any static due date.
func (a *PhaseAction) EffectiveDueAt() *time.Time {
	if a.IntervalDays != nil && a.LastCompletedAt != nil {
		due := a.LastCompletedAt.Add(time.Duration(*a.IntervalDays) * 24 * time.Hour)
		return &due
	}
	return a.DueAt
}

// Validate ensures the action is storable.
func (a *PhaseAction) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("action name is required")
	}
	if a.IntervalDays != nil && *a.IntervalDays <= 0 {
		return fmt.Errorf("action interval must be positive")
	}
	if a.TriggerAttenuation != nil && (*a.TriggerAttenuation <= 0 || *a.TriggerAttenuation > 1) {
		return fmt.Errorf("trigger attenuation must be in (0, 1]")
	}
	return nil
}
