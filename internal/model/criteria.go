package model

import (
	"encoding/json"
	"fmt"
)

// CompletionCriteria is the closed set of conditions that can gate phase
// completion. It is a sum type: exactly the six variants below exist, and
// evaluation is a recursive walk with one case per variant.
type CompletionCriteria interface {
	criteriaType() string
}

// GravityStable is met when recent gravity readings hold within a tolerance
// band. With StableDurationHours unset it checks the last ConsecutiveReadings
// readings; when set, every reading inside the rolling time window must be in
// band.
type GravityStable struct {
	StableDurationHours *int    `json:"stable_duration_hours,omitempty"`
	ConsecutiveReadings int     `json:"consecutive_readings"`
	ToleranceSG         float64 `json:"tolerance_sg"`
}

// GravityReached is met once the latest gravity crosses a target, either an
// absolute SG or one derived from attenuation against the original gravity.
type GravityReached struct {
	AttenuationFraction *float64 `json:"attenuation_fraction,omitempty"`
	TargetGravity       *float64 `json:"target_gravity,omitempty"`
}

// Duration is met once the phase has been active for at least MinDays.
type Duration struct {
	MinDays int `json:"min_days"`
}

// ActionCount is met once a named action has been logged at least MinCount
// times since the phase started.
type ActionCount struct {
	ActionName string `json:"action_name"`
	MinCount   int    `json:"min_count"`
}

// Manual is never met automatically; a human must advance the phase.
type Manual struct{}

// Compound is a logical AND over its children.
type Compound struct {
	Criteria []CompletionCriteria
}

func (GravityStable) criteriaType() string  { return "gravity_stable" }
func (GravityReached) criteriaType() string { return "gravity_reached" }
func (Duration) criteriaType() string       { return "duration" }
func (ActionCount) criteriaType() string    { return "action_count" }
func (Manual) criteriaType() string         { return "manual" }
func (Compound) criteriaType() string       { return "compound" }

// criteriaEnvelope is the tagged wire/storage form of a criteria node.
type criteriaEnvelope struct {
	Type                string            `json:"type"`
	StableDurationHours *int              `json:"stable_duration_hours,omitempty"`
	AttenuationFraction *float64          `json:"attenuation_fraction,omitempty"`
	TargetGravity       *float64          `json:"target_gravity,omitempty"`
	ActionName          string            `json:"action_name,omitempty"`
	Criteria            []json.RawMessage `json:"criteria,omitempty"`
	ConsecutiveReadings int               `json:"consecutive_readings,omitempty"`
	ToleranceSG         float64           `json:"tolerance_sg,omitempty"`
	MinDays             int               `json:"min_days,omitempty"`
	MinCount            int               `json:"min_count,omitempty"`
}

// MarshalCriteria encodes a criteria tree for the storage column.
func MarshalCriteria(c CompletionCriteria) ([]byte, error) {
	env, err := toEnvelope(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

func toEnvelope(c CompletionCriteria) (*criteriaEnvelope, error) {
	switch v := c.(type) {
	case GravityStable:
		return &criteriaEnvelope{
			Type:                v.criteriaType(),
			ConsecutiveReadings: v.ConsecutiveReadings,
			ToleranceSG:         v.ToleranceSG,
			StableDurationHours: v.StableDurationHours,
		}, nil
	case GravityReached:
		return &criteriaEnvelope{
			Type:                v.criteriaType(),
			AttenuationFraction: v.AttenuationFraction,
			TargetGravity:       v.TargetGravity,
		}, nil
	case Duration:
		return &criteriaEnvelope{Type: v.criteriaType(), MinDays: v.MinDays}, nil
	case ActionCount:
		return &criteriaEnvelope{Type: v.criteriaType(), ActionName: v.ActionName, MinCount: v.MinCount}, nil
	case Manual:
		return &criteriaEnvelope{Type: v.criteriaType()}, nil
	case Compound:
		children := make([]json.RawMessage, 0, len(v.Criteria))
		for _, child := range v.Criteria {
			data, err := MarshalCriteria(child)
			if err != nil {
				return nil, err
			}
			children = append(children, data)
		}
		return &criteriaEnvelope{Type: v.criteriaType(), Criteria: children}, nil
	case nil:
		return nil, fmt.Errorf("cannot marshal nil criteria")
	default:
		return nil, fmt.Errorf("unknown criteria type %T", c)
	}
}

// UnmarshalCriteria decodes a criteria tree from its tagged JSON form.
func UnmarshalCriteria(data []byte) (CompletionCriteria, error) {
	var env criteriaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode criteria: %w", err)
	}

	switch env.Type {
	case "gravity_stable":
		return GravityStable{
			ConsecutiveReadings: env.ConsecutiveReadings,
			ToleranceSG:         env.ToleranceSG,
			StableDurationHours: env.StableDurationHours,
		}, nil
	case "gravity_reached":
		return GravityReached{
			AttenuationFraction: env.AttenuationFraction,
			TargetGravity:       env.TargetGravity,
		}, nil
	case "duration":
		return Duration{MinDays: env.MinDays}, nil
	case "action_count":
		return ActionCount{ActionName: env.ActionName, MinCount: env.MinCount}, nil
	case "manual":
		return Manual{}, nil
	case "compound":
		children := make([]CompletionCriteria, 0, len(env.Criteria))
		for _, raw := range env.Criteria {
			child, err := UnmarshalCriteria(raw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return Compound{Criteria: children}, nil
	default:
		return nil, fmt.Errorf("unknown criteria type %q", env.Type)
	}
}

// ValidateCriteria checks a criteria tree for storable values.
func ValidateCriteria(c CompletionCriteria) error {
	switch v := c.(type) {
	case GravityStable:
		if v.ConsecutiveReadings < 2 && v.StableDurationHours == nil {
			return fmt.Errorf("gravity_stable requires at least 2 consecutive readings")
		}
		if v.ToleranceSG <= 0 {
			return fmt.Errorf("gravity_stable tolerance must be positive")
		}
		if v.StableDurationHours != nil && *v.StableDurationHours <= 0 {
			return fmt.Errorf("gravity_stable duration must be positive")
		}
	case GravityReached:
		if v.AttenuationFraction == nil && v.TargetGravity == nil {
			return fmt.Errorf("gravity_reached requires a target gravity or attenuation fraction")
		}
		if v.AttenuationFraction != nil && (*v.AttenuationFraction <= 0 || *v.AttenuationFraction > 1) {
			return fmt.Errorf("attenuation fraction must be in (0, 1]")
		}
	case Duration:
		if v.MinDays <= 0 {
			return fmt.Errorf("duration requires a positive day count")
		}
	case ActionCount:
		if v.ActionName == "" {
			return fmt.Errorf("action_count requires an action name")
		}
		if v.MinCount <= 0 {
			return fmt.Errorf("action_count requires a positive count")
		}
	case Manual:
	case Compound:
		if len(v.Criteria) == 0 {
			return fmt.Errorf("compound criteria requires at least one child")
		}
		for i, child := range v.Criteria {
			if err := ValidateCriteria(child); err != nil {
				return fmt.Errorf("compound child %d: %w", i, err)
			}
		}
	case nil:
		return fmt.Errorf("criteria cannot be nil")
	default:
		return fmt.Errorf("unknown criteria type %T", c)
	}
	return nil
}
