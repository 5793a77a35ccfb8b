package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hbenedict/airlock/internal/analysis"
	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
)

// alertDedupWindow suppresses re-raising an alert type that already has an
// unresolved instance this recent.
const alertDedupWindow = 24 * time.Hour

// Ingester records new readings and scans them for anomalies.
type Ingester struct {
	store service.Storage
}

// NewIngester creates an ingester over the given storage.
func NewIngester(store service.Storage) *Ingester {
	return &Ingester{store: store}
}

// RecordReading persists a reading and runs the alert rules over recent
// history. Alert scanning is best-effort: a failure there is logged and never
// blocks the ingest. Returns whether the reading was new (false on hash
// dedupe) and any alerts raised.
func (i *Ingester) RecordReading(ctx context.Context, batch model.Batch, reading model.Reading) (bool, []model.Alert, error) {
	reading.BatchID = batch.ID
	inserted, err := i.store.SaveReadings(ctx, []model.Reading{reading})
	if err != nil {
		return false, nil, fmt.Errorf("failed to save reading: %w", err)
	}
	if inserted == 0 {
		return false, nil, nil
	}

	alerts, alertErr := i.scanAlerts(ctx, batch)
	if alertErr != nil {
		common.LogError(alertErr, "alert scan failed after ingest", common.Fields{"batch": batch.ID})
	}
	return true, alerts, nil
}

// scanAlerts runs the detector and persists findings that pass the 24h
// dedup check.
func (i *Ingester) scanAlerts(ctx context.Context, batch model.Batch) ([]model.Alert, error) {
	entries, err := loadFeed(ctx, i.store, batch.ID)
	if err != nil {
		return nil, err
	}

	phase, err := i.store.GetActivePhase(ctx, batch.ID)
	if err != nil && !errors.Is(err, common.ErrNoActivePhase) {
		return nil, fmt.Errorf("failed to load active phase: %w", err)
	}

	findings := analysis.DetectAlerts(entries, phase)
	if len(findings) == 0 {
		return nil, nil
	}

	cutoff := time.Now().Add(-alertDedupWindow)
	var raised []model.Alert
	for _, f := range findings {
		recent, dupErr := i.store.HasRecentUnresolvedAlert(ctx, batch.ID, f.Type, cutoff)
		if dupErr != nil {
			return raised, fmt.Errorf("failed to check alert history: %w", dupErr)
		}
		if recent {
			slog.Debug("suppressing repeated alert", "batch", batch.ID, "type", f.Type)
			continue
		}

		alert := model.Alert{
			BatchID:  batch.ID,
			Type:     f.Type,
			Severity: f.Severity,
			Message:  f.Message,
		}
		if _, saveErr := i.store.SaveAlert(ctx, &alert); saveErr != nil {
			return raised, fmt.Errorf("failed to save alert: %w", saveErr)
		}
		raised = append(raised, alert)
	}
	return raised, nil
}
