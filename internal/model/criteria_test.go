package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func TestCriteriaRoundTrip(t *testing.T) {
	hours := 48
	target := 1.010
	fraction := 0.75

	tests := []struct {
		criteria CompletionCriteria
		name     string
	}{
		{GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0.002}, "gravity stable"},
		{GravityStable{ConsecutiveReadings: 2, ToleranceSG: 0.001, StableDurationHours: &hours}, "gravity stable window"},
		{GravityReached{TargetGravity: &target}, "gravity target"},
		{GravityReached{AttenuationFraction: &fraction}, "attenuation target"},
		{Duration{MinDays: 14}, "duration"},
		{ActionCount{ActionName: "stir", MinCount: 3}, "action count"},
		{Manual{}, "manual"},
		{Compound{Criteria: []CompletionCriteria{
			Duration{MinDays: 7},
			Compound{Criteria: []CompletionCriteria{
				GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0.002},
				Manual{},
			}},
		}}, "nested compound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalCriteria(tt.criteria)
			require.NoError(t, err)

			decoded, err := UnmarshalCriteria(data)
			require.NoError(t, err)
			assert.Equal(t, tt.criteria, decoded)
		})
	}
}

func TestMarshalNilCriteria(t *testing.T) {
	_, err := MarshalCriteria(nil)
	assert.Error(t, err)
}

func TestUnmarshalUnknownType(t *testing.T) {
	_, err := UnmarshalCriteria([]byte(`{"type":"astrology"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "astrology")
}

func TestValidateCriteria(t *testing.T) {
	target := 1.010
	badFraction := 1.5
	zeroHours := 0

	tests := []struct {
		criteria CompletionCriteria
		name     string
		wantErr  bool
	}{
		{GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0.002}, "valid stable", false},
		{GravityStable{ConsecutiveReadings: 1, ToleranceSG: 0.002}, "too few readings", true},
		{GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0}, "zero tolerance", true},
		{GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0.002, StableDurationHours: &zeroHours}, "zero window", true},
		{GravityReached{TargetGravity: &target}, "valid target", false},
		{GravityReached{}, "no target at all", true},
		{GravityReached{AttenuationFraction: &badFraction}, "fraction above one", true},
		{Duration{MinDays: 14}, "valid duration", false},
		{Duration{}, "zero duration", true},
		{ActionCount{ActionName: "stir", MinCount: 1}, "valid action count", false},
		{ActionCount{MinCount: 1}, "missing action name", true},
		{Manual{}, "manual", false},
		{Compound{}, "empty compound", true},
		{Compound{Criteria: []CompletionCriteria{Duration{}}}, "invalid child", true},
		{nil, "nil criteria", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCriteria(tt.criteria)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadingHashStable(t *testing.T) {
	r := Reading{BatchID: 1, Gravity: 1.0500, Source: "manual"}
	r.RecordedAt = mustParse(t, "2026-08-04T12:00:00Z")

	first := r.GenerateHash()
	second := r.GenerateHash()
	assert.Equal(t, first, second)

	r.Gravity = 1.0501
	assert.NotEqual(t, first, r.GenerateHash())
}

func TestPhaseActionEffectiveDueAt(t *testing.T) {
	due := mustParse(t, "2026-08-10T00:00:00Z")
	completed := mustParse(t, "2026-08-08T00:00:00Z")
	interval := 3

	// Static due date only.
	a := PhaseAction{Name: "rack", DueAt: &due}
	require.NotNil(t, a.EffectiveDueAt())
	assert.Equal(t, due, *a.EffectiveDueAt())

	// Interval plus completion wins over the static date.
	a.IntervalDays = &interval
	a.LastCompletedAt = &completed
	assert.Equal(t, completed.AddDate(0, 0, 3), *a.EffectiveDueAt())

	// Interval without a completion falls back to the static date.
	a.LastCompletedAt = nil
	assert.Equal(t, due, *a.EffectiveDueAt())
}
