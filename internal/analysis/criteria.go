package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hbenedict/airlock/internal/model"
)

// DefaultExpectedFinalGravity is assumed when neither the batch nor the
// caller supplies an expected final gravity for attenuation math. Kept for
// compatibility with existing batches; override it through EvalContext.
const DefaultExpectedFinalGravity = 0.995

// EvalContext carries the gravity inputs that gravity-target criteria and
// gravity-triggered actions need. All fields are optional; missing inputs
// make the affected criteria fail closed rather than error.
type EvalContext struct {
	LatestGravity        *float64
	OriginalGravity      *float64
	ExpectedFinalGravity float64 // 0 means DefaultExpectedFinalGravity
}

func (c EvalContext) expectedFinal() float64 {
	if c.ExpectedFinalGravity > 0 {
		return c.ExpectedFinalGravity
	}
	return DefaultExpectedFinalGravity
}

// EvalResult is the phase-status answer: whether the phase can advance, why
// or why not in human-readable form, and the action schedule.
type EvalResult struct {
	CriteriaDetails string
	OverdueActions  []model.PhaseAction
	NextActions     []model.PhaseAction
	DaysInPhase     int
	CriteriaMet     bool
}

// EvaluatePhase decides phase readiness and due actions. The entry feed must
// be ordered newest first; callers bound how much history they pass. The
// function never errors: every missing input becomes an unmet result with an
// explanatory message, because this runs on every status poll.
func EvaluatePhase(phase model.Phase, actions []model.PhaseAction, entries []Entry, evalCtx EvalContext, now time.Time) EvalResult {
	var result EvalResult

	if phase.StartedAt != nil {
		result.DaysInPhase = int(now.Sub(*phase.StartedAt).Hours() / 24)
	}

	if phase.Criteria == nil {
		result.CriteriaDetails = "no completion criteria configured"
	} else {
		result.CriteriaMet, result.CriteriaDetails = evaluateCriteria(phase.Criteria, phase, entries, evalCtx, now)
	}

	result.OverdueActions, result.NextActions = classifyActions(actions, entries, evalCtx, now)
	return result
}

// evaluateCriteria is the recursive interpreter over the criteria sum type.
// Numeric comparisons are inclusive at the boundary: hitting the tolerance or
// target exactly counts as met.
func evaluateCriteria(c model.CompletionCriteria, phase model.Phase, entries []Entry, evalCtx EvalContext, now time.Time) (bool, string) {
	switch v := c.(type) {
	case model.GravityStable:
		return evaluateGravityStable(v, entries, now)
	case model.GravityReached:
		return evaluateGravityReached(v, entries, evalCtx)
	case model.Duration:
		if phase.StartedAt == nil {
			return false, "phase not started"
		}
		elapsed := now.Sub(*phase.StartedAt).Hours() / 24
		if elapsed >= float64(v.MinDays) {
			return true, fmt.Sprintf("day %d of minimum %d", int(elapsed)+1, v.MinDays)
		}
		return false, fmt.Sprintf("day %d of minimum %d", int(elapsed)+1, v.MinDays)
	case model.ActionCount:
		count := 0
		for _, e := range entries {
			if e.EventName != v.ActionName {
				continue
			}
			if phase.StartedAt != nil && e.RecordedAt.Before(*phase.StartedAt) {
				continue
			}
			count++
		}
		met := count >= v.MinCount
		return met, fmt.Sprintf("%q logged %d of %d times", v.ActionName, count, v.MinCount)
	case model.Manual:
		return false, "awaiting manual sign-off"
	case model.Compound:
		met := true
		details := make([]string, 0, len(v.Criteria))
		for _, child := range v.Criteria {
			childMet, childDetail := evaluateCriteria(child, phase, entries, evalCtx, now)
			met = met && childMet
			details = append(details, childDetail)
		}
		return met, strings.Join(details, "; ")
	default:
		return false, fmt.Sprintf("unknown criteria type %T", c)
	}
}

func evaluateGravityStable(v model.GravityStable, entries []Entry, now time.Time) (bool, string) {
	if v.StableDurationHours != nil {
		window := time.Duration(*v.StableDurationHours) * time.Hour
		cutoff := now.Add(-window)

		var gravities []float64
		for _, e := range entries {
			if e.IsReading() && !e.RecordedAt.Before(cutoff) {
				gravities = append(gravities, *e.Gravity)
			}
		}
		if len(gravities) < 2 {
			return false, fmt.Sprintf("need at least 2 readings in the last %dh, have %d",
				*v.StableDurationHours, len(gravities))
		}
		spread := rangeOf(gravities)
		if spread <= v.ToleranceSG {
			return true, fmt.Sprintf("gravity stable over %dh (range %.4f within %.4f)",
				*v.StableDurationHours, spread, v.ToleranceSG)
		}
		return false, fmt.Sprintf("gravity range %.4f over the last %dh exceeds %.4f",
			spread, *v.StableDurationHours, v.ToleranceSG)
	}

	var gravities []float64
	for _, e := range entries {
		if e.IsReading() {
			gravities = append(gravities, *e.Gravity)
			if len(gravities) == v.ConsecutiveReadings {
				break
			}
		}
	}
	if len(gravities) < v.ConsecutiveReadings {
		return false, fmt.Sprintf("only %d of %d readings recorded", len(gravities), v.ConsecutiveReadings)
	}
	spread := rangeOf(gravities)
	if spread <= v.ToleranceSG {
		return true, fmt.Sprintf("gravity stable: last %d readings within %.4f (range %.4f)",
			v.ConsecutiveReadings, v.ToleranceSG, spread)
	}
	return false, fmt.Sprintf("gravity range %.4f over last %d readings exceeds %.4f",
		spread, v.ConsecutiveReadings, v.ToleranceSG)
}

func evaluateGravityReached(v model.GravityReached, entries []Entry, evalCtx EvalContext) (bool, string) {
	latest := latestGravity(entries, evalCtx)
	if latest == nil {
		return false, "no readings yet"
	}

	switch {
	case v.TargetGravity != nil:
		if *latest <= *v.TargetGravity {
			return true, fmt.Sprintf("gravity %.4f at or below target %.4f", *latest, *v.TargetGravity)
		}
		return false, fmt.Sprintf("gravity %.4f above target %.4f", *latest, *v.TargetGravity)
	case v.AttenuationFraction != nil:
		if evalCtx.OriginalGravity == nil {
			return false, "original gravity not recorded"
		}
		og := *evalCtx.OriginalGravity
		target := og - *v.AttenuationFraction*(og-evalCtx.expectedFinal())
		if *latest <= target {
			return true, fmt.Sprintf("gravity %.4f reached %.0f%% attenuation target %.4f",
				*latest, *v.AttenuationFraction*100, target)
		}
		return false, fmt.Sprintf("gravity %.4f above %.0f%% attenuation target %.4f",
			*latest, *v.AttenuationFraction*100, target)
	default:
		return false, "no gravity target configured"
	}
}

// classifyActions splits the phase's actions into overdue and upcoming.
// Gravity-triggered actions are overdue only once the live gravity has
// crossed the trigger; if the needed gravity context is missing they stay
// upcoming. Upcoming actions sort by effective due time, undated last, ties
// by explicit sort order.
func classifyActions(actions []model.PhaseAction, entries []Entry, evalCtx EvalContext, now time.Time) (overdue, next []model.PhaseAction) {
	latest := latestGravity(entries, evalCtx)

	for _, a := range actions {
		if a.GravityTriggered() {
			if gravityTriggerCrossed(a, latest, evalCtx) {
				overdue = append(overdue, a)
			} else {
				next = append(next, a)
			}
			continue
		}
		due := a.EffectiveDueAt()
		if due != nil && !due.After(now) {
			overdue = append(overdue, a)
		} else {
			next = append(next, a)
		}
	}

	sort.SliceStable(next, func(i, j int) bool {
		di, dj := next[i].EffectiveDueAt(), next[j].EffectiveDueAt()
		switch {
		case di == nil && dj == nil:
			return next[i].SortOrder < next[j].SortOrder
		case di == nil:
			return false
		case dj == nil:
			return true
		case di.Equal(*dj):
			return next[i].SortOrder < next[j].SortOrder
		default:
			return di.Before(*dj)
		}
	})
	return overdue, next
}

func gravityTriggerCrossed(a model.PhaseAction, latest *float64, evalCtx EvalContext) bool {
	if latest == nil {
		return false
	}
	if a.TriggerGravity != nil {
		return *latest <= *a.TriggerGravity
	}
	if a.TriggerAttenuation != nil {
		if evalCtx.OriginalGravity == nil {
			return false
		}
		og := *evalCtx.OriginalGravity
		span := og - evalCtx.expectedFinal()
		if span <= 0 {
			return false
		}
		return (og-*latest)/span >= *a.TriggerAttenuation
	}
	return false
}

// latestGravity prefers the caller-supplied context, then the newest reading
// in the feed.
func latestGravity(entries []Entry, evalCtx EvalContext) *float64 {
	if evalCtx.LatestGravity != nil {
		return evalCtx.LatestGravity
	}
	for _, e := range entries {
		if e.IsReading() {
			return e.Gravity
		}
	}
	return nil
}

func rangeOf(values []float64) float64 {
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return maxV - minV
}
