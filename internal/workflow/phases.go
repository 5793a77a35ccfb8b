package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
)

// AdvancePhase completes the batch's active phase and activates the next
// pending one in sort order. When no phase remains the batch itself is
// completed. Returns the newly active phase, or nil if the batch finished.
func AdvancePhase(ctx context.Context, store service.Storage, batch *model.Batch, now time.Time) (*model.Phase, error) {
	return closeActivePhase(ctx, store, batch, model.PhaseCompleted, now)
}

// SkipPhase marks the active phase skipped instead of completed, then
// activates the next one the same way.
func SkipPhase(ctx context.Context, store service.Storage, batch *model.Batch, now time.Time) (*model.Phase, error) {
	return closeActivePhase(ctx, store, batch, model.PhaseSkipped, now)
}

// ActivateFirstPhase starts a batch's protocol: the first pending phase
// becomes active and the batch goes active. Used at batch creation.
func ActivateFirstPhase(ctx context.Context, store service.Storage, batch *model.Batch, now time.Time) (*model.Phase, error) {
	phases, err := store.GetPhases(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	for i := range phases {
		if phases[i].Status == model.PhaseActive {
			return nil, fmt.Errorf("%w: phase %q is already active", common.ErrPhaseOutOfOrder, phases[i].Name)
		}
	}

	next := firstPending(phases)
	if next == nil {
		return nil, fmt.Errorf("batch %d has no pending phases", batch.ID)
	}

	next.Status = model.PhaseActive
	next.StartedAt = &now
	if err := store.UpdatePhase(ctx, next); err != nil {
		return nil, err
	}

	batch.Status = model.BatchActive
	batch.CurrentPhaseID = &next.ID
	if err := store.UpdateBatch(ctx, batch); err != nil {
		return nil, err
	}
	return next, nil
}

func closeActivePhase(ctx context.Context, store service.Storage, batch *model.Batch, closedStatus model.PhaseStatus, now time.Time) (*model.Phase, error) {
	if batch.Status != model.BatchActive {
		return nil, fmt.Errorf("batch %q: %w", batch.Name, common.ErrBatchNotActive)
	}

	phases, err := store.GetPhases(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	var active *model.Phase
	for i := range phases {
		if phases[i].Status == model.PhaseActive {
			active = &phases[i]
			break
		}
	}
	if active == nil {
		return nil, common.ErrNoActivePhase
	}

	active.Status = closedStatus
	active.CompletedAt = &now
	if err := store.UpdatePhase(ctx, active); err != nil {
		return nil, err
	}

	next := firstPending(phases)
	if next == nil {
		// Protocol finished; the batch is done.
		batch.Status = model.BatchCompleted
		batch.CurrentPhaseID = nil
		if err := store.UpdateBatch(ctx, batch); err != nil {
			return nil, err
		}
		return nil, nil
	}

	next.Status = model.PhaseActive
	next.StartedAt = &now
	if err := store.UpdatePhase(ctx, next); err != nil {
		return nil, err
	}

	batch.CurrentPhaseID = &next.ID
	if err := store.UpdateBatch(ctx, batch); err != nil {
		return nil, err
	}
	return next, nil
}

// firstPending returns the lowest-sorted pending phase, preserving the
// total order of the protocol.
func firstPending(phases []model.Phase) *model.Phase {
	for i := range phases {
		if phases[i].Status == model.PhasePending {
			return &phases[i]
		}
	}
	return nil
}
