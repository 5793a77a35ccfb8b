package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/analysis"
	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
)

// StatusReport is everything the status view needs for one batch.
type StatusReport struct {
	Phase         *model.Phase
	LatestReading *model.Reading
	Eval          analysis.EvalResult
	OpenAlerts    []model.Alert
}

// PhaseStatus evaluates the batch's active phase against its criteria and
// action schedule. A batch with no active phase still gets a report, with
// Phase nil and an explanatory detail string.
func PhaseStatus(ctx context.Context, store service.Storage, batch model.Batch, now time.Time) (*StatusReport, error) {
	report := &StatusReport{}

	phase, err := store.GetActivePhase(ctx, batch.ID)
	if err != nil && !errors.Is(err, common.ErrNoActivePhase) {
		return nil, fmt.Errorf("failed to load active phase: %w", err)
	}
	report.Phase = phase

	latest, err := store.GetLatestReading(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	report.LatestReading = latest

	alerts, err := store.ListAlerts(ctx, batch.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	report.OpenAlerts = alerts

	if phase == nil {
		report.Eval = analysis.EvalResult{CriteriaDetails: "no active phase"}
		return report, nil
	}

	actions, err := store.GetActionsByPhase(ctx, phase.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load actions: %w", err)
	}

	entries, err := loadFeed(ctx, store, batch.ID)
	if err != nil {
		return nil, err
	}

	ec, err := evalContext(ctx, store, batch)
	if err != nil {
		return nil, err
	}

	report.Eval = analysis.EvaluatePhase(*phase, actions, entries, ec, now)
	return report, nil
}
