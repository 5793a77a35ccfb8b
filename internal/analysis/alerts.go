package analysis

import (
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/model"
)

// Alert rule thresholds.
const (
	stuckReadingCount = 4
	stuckMinSpan      = 48 * time.Hour
	stuckMaxRange     = 0.001
	reboundThreshold  = 0.003
)

// Finding is one detected anomaly. The detector is stateless and may report
// the same condition on every call; the ingest workflow suppresses repeats of
// an unresolved alert raised within the last 24 hours.
type Finding struct {
	Type     model.AlertType
	Severity model.AlertSeverity
	Message  string
}

// DetectAlerts scans the recent entry feed (newest first) for anomalies.
// Each rule looks only at the most recent few matching entries, never full
// history. A nil phase disables the phase-dependent rules.
func DetectAlerts(entries []Entry, phase *model.Phase) []Finding {
	var findings []Finding

	if f := detectStuckFermentation(entries, phase); f != nil {
		findings = append(findings, *f)
	}
	if f := detectTemperatureDrift(entries, phase); f != nil {
		findings = append(findings, *f)
	}
	if f := detectGravityRebound(entries); f != nil {
		findings = append(findings, *f)
	}
	return findings
}

// detectStuckFermentation fires when gravity has barely moved across the
// newest four readings over at least 48 hours. It only applies while the
// active phase is actually waiting on gravity stability; a phase gated on
// manual sign-off or duration is expected to sit flat.
func detectStuckFermentation(entries []Entry, phase *model.Phase) *Finding {
	if phase == nil || !hasGravityStable(phase.Criteria) {
		return nil
	}

	recent := make([]Entry, 0, stuckReadingCount)
	for _, e := range entries {
		if e.IsReading() {
			recent = append(recent, e)
			if len(recent) == stuckReadingCount {
				break
			}
		}
	}
	if len(recent) < stuckReadingCount {
		return nil
	}

	// Entries are newest first, so recent[0] is the latest reading. No gap
	// or spacing check is applied between the four; sparse sampling can
	// satisfy the span with a single large gap.
	span := recent[0].RecordedAt.Sub(recent[len(recent)-1].RecordedAt)
	if span < stuckMinSpan {
		return nil
	}

	gravities := make([]float64, len(recent))
	for i, e := range recent {
		gravities[i] = *e.Gravity
	}
	if rangeOf(gravities) >= stuckMaxRange {
		return nil
	}

	return &Finding{
		Type:     model.AlertStuckFermentation,
		Severity: model.SeverityWarning,
		Message: fmt.Sprintf("gravity unchanged at %.4f across the last %d readings (%.0fh); fermentation may be stuck",
			gravities[0], stuckReadingCount, span.Hours()),
	}
}

// detectTemperatureDrift fires when both of the last two temperature readings
// fall outside the active phase's target band, on either side.
func detectTemperatureDrift(entries []Entry, phase *model.Phase) *Finding {
	if phase == nil || !phase.HasTempTarget() {
		return nil
	}

	temps := make([]float64, 0, 2)
	for _, e := range entries {
		if e.Temperature != nil {
			temps = append(temps, *e.Temperature)
			if len(temps) == 2 {
				break
			}
		}
	}
	if len(temps) < 2 {
		return nil
	}

	low, high := *phase.TargetTempLow, *phase.TargetTempHigh
	for _, t := range temps {
		if t >= low && t <= high {
			return nil
		}
	}

	return &Finding{
		Type:     model.AlertTemperature,
		Severity: model.SeverityWarning,
		Message: fmt.Sprintf("last two temperature readings (%.1f, %.1f) outside target range %.1f-%.1f",
			temps[0], temps[1], low, high),
	}
}

// detectGravityRebound fires when gravity rose between the previous and
// latest reading. Gravity should only fall or hold during fermentation, so a
// rise flags measurement error or contamination.
func detectGravityRebound(entries []Entry) *Finding {
	gravities := make([]float64, 0, 2)
	for _, e := range entries {
		if e.IsReading() {
			gravities = append(gravities, *e.Gravity)
			if len(gravities) == 2 {
				break
			}
		}
	}
	if len(gravities) < 2 {
		return nil
	}

	latest, previous := gravities[0], gravities[1]
	rise := latest - previous
	if rise <= reboundThreshold {
		return nil
	}

	return &Finding{
		Type:     model.AlertCustom,
		Severity: model.SeverityWarning,
		Message: fmt.Sprintf("gravity rose from %.4f to %.4f (+%.4f); check for measurement error or contamination",
			previous, latest, rise),
	}
}

// hasGravityStable reports whether a gravity-stability requirement appears
// anywhere in the criteria tree.
func hasGravityStable(c model.CompletionCriteria) bool {
	switch v := c.(type) {
	case model.GravityStable:
		return true
	case model.Compound:
		for _, child := range v.Criteria {
			if hasGravityStable(child) {
				return true
			}
		}
	}
	return false
}
