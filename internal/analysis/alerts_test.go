package analysis

import (
	"testing"
	"time"

	"github.com/hbenedict/airlock/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readingAt builds one feed entry at an offset before evalNow.
func readingAt(age time.Duration, gravity float64, temp *float64) Entry {
	g := gravity
	return Entry{
		RecordedAt:  evalNow.Add(-age),
		Gravity:     &g,
		Temperature: temp,
	}
}

func stablePhase() *model.Phase {
	p := startedPhase(model.GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0.002}, 10)
	return &p
}

func findByType(findings []Finding, alertType model.AlertType) *Finding {
	for i := range findings {
		if findings[i].Type == alertType {
			return &findings[i]
		}
	}
	return nil
}

func TestStuckFermentation(t *testing.T) {
	entries := []Entry{
		readingAt(0, 1.0400, nil),
		readingAt(24*time.Hour, 1.0401, nil),
		readingAt(48*time.Hour, 1.0399, nil),
		readingAt(72*time.Hour, 1.0400, nil),
	}

	findings := DetectAlerts(entries, stablePhase())

	finding := findByType(findings, model.AlertStuckFermentation)
	require.NotNil(t, finding)
	assert.Equal(t, model.SeverityWarning, finding.Severity)
	assert.Contains(t, finding.Message, "stuck")
}

func TestStuckRequiresGravityStableCriteria(t *testing.T) {
	entries := []Entry{
		readingAt(0, 1.0400, nil),
		readingAt(24*time.Hour, 1.0400, nil),
		readingAt(48*time.Hour, 1.0400, nil),
		readingAt(72*time.Hour, 1.0400, nil),
	}

	// An aging phase gated on manual sign-off is expected to sit flat.
	manual := startedPhase(model.Manual{}, 10)
	assert.Nil(t, findByType(DetectAlerts(entries, &manual), model.AlertStuckFermentation))

	// No active phase disables the rule entirely.
	assert.Nil(t, findByType(DetectAlerts(entries, nil), model.AlertStuckFermentation))

	// A compound tree containing gravity_stable re-enables it.
	compound := startedPhase(model.Compound{Criteria: []model.CompletionCriteria{
		model.Duration{MinDays: 5},
		model.GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0.002},
	}}, 10)
	assert.NotNil(t, findByType(DetectAlerts(entries, &compound), model.AlertStuckFermentation))
}

func TestStuckSpanBoundary(t *testing.T) {
	// Exactly 48 hours between newest and oldest of the four qualifies.
	exact := []Entry{
		readingAt(0, 1.0400, nil),
		readingAt(16*time.Hour, 1.0400, nil),
		readingAt(32*time.Hour, 1.0400, nil),
		readingAt(48*time.Hour, 1.0400, nil),
	}
	assert.NotNil(t, findByType(DetectAlerts(exact, stablePhase()), model.AlertStuckFermentation))

	short := []Entry{
		readingAt(0, 1.0400, nil),
		readingAt(12*time.Hour, 1.0400, nil),
		readingAt(24*time.Hour, 1.0400, nil),
		readingAt(47*time.Hour, 1.0400, nil),
	}
	assert.Nil(t, findByType(DetectAlerts(short, stablePhase()), model.AlertStuckFermentation))
}

func TestStuckRealMovementIsQuiet(t *testing.T) {
	entries := []Entry{
		readingAt(0, 1.0400, nil),
		readingAt(24*time.Hour, 1.0405, nil),
		readingAt(48*time.Hour, 1.0410, nil),
		readingAt(72*time.Hour, 1.0415, nil),
	}
	assert.Nil(t, findByType(DetectAlerts(entries, stablePhase()), model.AlertStuckFermentation))
}

func TestStuckSparseSamplingStillQualifies(t *testing.T) {
	// Three readings within an hour plus one 60h-old reading: the span check
	// looks only at newest vs oldest, so a single large gap satisfies it.
	entries := []Entry{
		readingAt(0, 1.0400, nil),
		readingAt(20*time.Minute, 1.0400, nil),
		readingAt(40*time.Minute, 1.0400, nil),
		readingAt(60*time.Hour, 1.0400, nil),
	}
	assert.NotNil(t, findByType(DetectAlerts(entries, stablePhase()), model.AlertStuckFermentation))
}

func TestStuckNeedsFourReadings(t *testing.T) {
	entries := []Entry{
		readingAt(0, 1.0400, nil),
		readingAt(36*time.Hour, 1.0400, nil),
		readingAt(72*time.Hour, 1.0400, nil),
	}
	assert.Nil(t, findByType(DetectAlerts(entries, stablePhase()), model.AlertStuckFermentation))
}

func TestStuckSkipsEventEntries(t *testing.T) {
	entries := []Entry{
		readingAt(0, 1.0400, nil),
		{RecordedAt: evalNow.Add(-time.Hour), EventName: "stir"},
		readingAt(24*time.Hour, 1.0400, nil),
		readingAt(48*time.Hour, 1.0400, nil),
		readingAt(72*time.Hour, 1.0400, nil),
	}
	assert.NotNil(t, findByType(DetectAlerts(entries, stablePhase()), model.AlertStuckFermentation))
}

func TestTemperatureDrift(t *testing.T) {
	low, high := 60.0, 70.0
	phase := stablePhase()
	phase.TargetTempLow = &low
	phase.TargetTempHigh = &high

	hot1, hot2 := 75.0, 76.0
	entries := []Entry{
		readingAt(0, 1.0400, &hot1),
		readingAt(12*time.Hour, 1.0390, &hot2),
	}
	finding := findByType(DetectAlerts(entries, phase), model.AlertTemperature)
	require.NotNil(t, finding)
	assert.Contains(t, finding.Message, "outside target range")
}

func TestTemperatureDriftOneInsideIsQuiet(t *testing.T) {
	low, high := 60.0, 70.0
	phase := stablePhase()
	phase.TargetTempLow = &low
	phase.TargetTempHigh = &high

	hot, fine := 75.0, 65.0
	entries := []Entry{
		readingAt(0, 1.0400, &hot),
		readingAt(12*time.Hour, 1.0390, &fine),
	}
	assert.Nil(t, findByType(DetectAlerts(entries, phase), model.AlertTemperature))
}

func TestTemperatureDriftBothSidesOfBand(t *testing.T) {
	// One reading above the band and one below still fires: both are outside.
	low, high := 60.0, 70.0
	phase := stablePhase()
	phase.TargetTempLow = &low
	phase.TargetTempHigh = &high

	hot, cold := 75.0, 55.0
	entries := []Entry{
		readingAt(0, 1.0400, &hot),
		readingAt(12*time.Hour, 1.0390, &cold),
	}
	assert.NotNil(t, findByType(DetectAlerts(entries, phase), model.AlertTemperature))
}

func TestTemperatureDriftNoTargetConfigured(t *testing.T) {
	hot1, hot2 := 90.0, 91.0
	entries := []Entry{
		readingAt(0, 1.0400, &hot1),
		readingAt(12*time.Hour, 1.0390, &hot2),
	}
	// Without a configured band there is no rule to break.
	assert.Nil(t, findByType(DetectAlerts(entries, stablePhase()), model.AlertTemperature))
}

func TestGravityRebound(t *testing.T) {
	entries := []Entry{
		readingAt(0, 1.0140, nil),
		readingAt(12*time.Hour, 1.0100, nil),
	}
	finding := findByType(DetectAlerts(entries, nil), model.AlertCustom)
	require.NotNil(t, finding)
	assert.Contains(t, finding.Message, "gravity rose")
}

func TestGravityReboundSmallRiseTolerated(t *testing.T) {
	// A small bump within the 0.003 threshold is normal hydrometer noise.
	entries := []Entry{
		readingAt(0, 1.0120, nil),
		readingAt(12*time.Hour, 1.0100, nil),
	}
	assert.Nil(t, findByType(DetectAlerts(entries, nil), model.AlertCustom))
}

func TestGravityFallingIsQuiet(t *testing.T) {
	entries := []Entry{
		readingAt(0, 1.0100, nil),
		readingAt(12*time.Hour, 1.0140, nil),
	}
	assert.Empty(t, DetectAlerts(entries, nil))
}
