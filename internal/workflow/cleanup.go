package workflow

import (
	"context"
	"fmt"

	"github.com/hbenedict/airlock/internal/analysis"
	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
)

// ReviewOutliers runs the detector over the batch's full reading history,
// including already-excluded readings so prior decisions stay visible. The
// result is a set of suggestions; nothing changes until ApplyExclusions.
func ReviewOutliers(ctx context.Context, store service.Storage, batch model.Batch, opts analysis.OutlierOptions) (analysis.OutlierResult, error) {
	readings, err := store.GetReadings(ctx, batch.ID, service.ReadingFilter{IncludeExcluded: true})
	if err != nil {
		return analysis.OutlierResult{}, fmt.Errorf("failed to load readings: %w", err)
	}
	if len(readings) == 0 {
		return analysis.OutlierResult{}, fmt.Errorf("batch %q: %w", batch.Name, common.ErrNoReadings)
	}
	return analysis.DetectOutliers(readings, opts), nil
}

// ApplyExclusions marks the confirmed flags excluded and invalidates the
// recaps of every affected date so the generator rebuilds them from the
// cleaned data. The mutations run in one transaction.
func ApplyExclusions(ctx context.Context, store service.Storage, batch model.Batch, flags []model.OutlierFlag) error {
	if len(flags) == 0 {
		return nil
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	loc := batch.Location()
	dates := make(map[string]bool)
	for _, flag := range flags {
		if err := tx.SetReadingExclusion(ctx, flag.ReadingID, true, flag.Reason); err != nil {
			return err
		}
		dates[flag.RecordedAt.In(loc).Format(model.DateLayout)] = true
	}
	for date := range dates {
		if err := tx.DeleteRecap(ctx, batch.ID, date); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RestoreReadings reverses exclusions and invalidates the affected recaps.
func RestoreReadings(ctx context.Context, store service.Storage, batch model.Batch, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	loc := batch.Location()
	dates := make(map[string]bool)
	for _, r := range readings {
		if err := tx.SetReadingExclusion(ctx, r.ID, false, model.ExcludeNone); err != nil {
			return err
		}
		dates[r.RecordedAt.In(loc).Format(model.DateLayout)] = true
	}
	for date := range dates {
		if err := tx.DeleteRecap(ctx, batch.ID, date); err != nil {
			return err
		}
	}

	return tx.Commit()
}
