package model

import (
	"fmt"
	"time"
)

// AlertType classifies a detected anomaly.
type AlertType string

// Alert types.
const (
	AlertStuckFermentation AlertType = "stuck_fermentation"
	AlertTemperature       AlertType = "temperature"
	AlertCustom            AlertType = "custom"
)

// AlertSeverity grades how urgent an alert is.
type AlertSeverity string

// Alert severities.
const (
	SeverityInfo    AlertSeverity = "info"
	SeverityWarning AlertSeverity = "warning"
)

// Alert is a persisted anomaly raised against a batch. The detector itself is
// stateless; persistence exists so the ingest workflow can suppress repeats of
// an unresolved alert within 24 hours.
type Alert struct {
	CreatedAt  time.Time
	ResolvedAt *time.Time
	Type       AlertType
	Severity   AlertSeverity
	Message    string
	ID         int64
	BatchID    int64
}

// Resolved reports whether the alert has been acknowledged.
func (a *Alert) Resolved() bool {
	return a.ResolvedAt != nil
}

// Validate ensures the alert is storable.
func (a *Alert) Validate() error {
	switch a.Type {
	case AlertStuckFermentation, AlertTemperature, AlertCustom:
	default:
		return fmt.Errorf("invalid alert type %q", a.Type)
	}
	switch a.Severity {
	case SeverityInfo, SeverityWarning:
	default:
		return fmt.Errorf("invalid alert severity %q", a.Severity)
	}
	if a.Message == "" {
		return fmt.Errorf("alert message is required")
	}
	return nil
}
