package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestStorage opens a migrated temp-file database that is cleaned up
// with the test.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func createTestBatch(t *testing.T, store *SQLiteStorage) *model.Batch {
	t.Helper()

	batch := &model.Batch{
		Name:   "test-batch",
		Style:  model.StyleWine,
		Status: model.BatchActive,
	}
	_, err := store.CreateBatch(context.Background(), batch)
	require.NoError(t, err)
	return batch
}

func testReading(batchID int64, at time.Time, gravity float64) model.Reading {
	return model.Reading{
		BatchID:    batchID,
		RecordedAt: at,
		Gravity:    gravity,
		Source:     "manual",
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := createTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestBatchCRUD(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	og := 1.085
	batch := &model.Batch{
		Name:            "chardonnay",
		Style:           model.StyleWine,
		Status:          model.BatchPlanning,
		OriginalGravity: &og,
		Timezone:        "America/New_York",
	}
	id, err := store.CreateBatch(ctx, batch)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := store.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "chardonnay", got.Name)
	assert.Equal(t, model.StyleWine, got.Style)
	require.NotNil(t, got.OriginalGravity)
	assert.Equal(t, 1.085, *got.OriginalGravity)
	assert.Equal(t, "America/New_York", got.Timezone)

	got.Status = model.BatchActive
	require.NoError(t, store.UpdateBatch(ctx, got))

	updated, err := store.GetBatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.BatchActive, updated.Status)

	batches, err := store.ListBatches(ctx)
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}

func TestGetBatchNotFound(t *testing.T) {
	store := createTestStorage(t)
	_, err := store.GetBatch(context.Background(), 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveReadingsDeduplicates(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	base := time.Date(2026, 8, 4, 8, 0, 0, 0, time.UTC)
	readings := []model.Reading{
		testReading(batch.ID, base, 1.0500),
		testReading(batch.ID, base.Add(time.Hour), 1.0490),
		testReading(batch.ID, base.Add(2*time.Hour), 1.0480),
	}

	inserted, err := store.SaveReadings(ctx, readings)
	require.NoError(t, err)
	assert.Equal(t, 3, inserted)

	// Re-saving the identical readings inserts nothing.
	again := []model.Reading{
		testReading(batch.ID, base, 1.0500),
		testReading(batch.ID, base.Add(time.Hour), 1.0490),
	}
	inserted, err = store.SaveReadings(ctx, again)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	stored, err := store.GetReadings(ctx, batch.ID, service.ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	// Ascending by time.
	assert.True(t, stored[0].RecordedAt.Before(stored[1].RecordedAt))
	assert.Equal(t, 1.0500, stored[0].Gravity)
}

func TestGetReadingsFilters(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	base := time.Date(2026, 8, 4, 8, 0, 0, 0, time.UTC)
	var readings []model.Reading
	for i := 0; i < 5; i++ {
		readings = append(readings, testReading(batch.ID, base.Add(time.Duration(i)*time.Hour), 1.0500-float64(i)*0.001))
	}
	_, err := store.SaveReadings(ctx, readings)
	require.NoError(t, err)

	// Descending with limit.
	newest, err := store.GetReadings(ctx, batch.ID, service.ReadingFilter{Descending: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, base.Add(4*time.Hour), newest[0].RecordedAt)

	// Time window.
	since := base.Add(time.Hour)
	until := base.Add(3 * time.Hour)
	window, err := store.GetReadings(ctx, batch.ID, service.ReadingFilter{Since: &since, Until: &until})
	require.NoError(t, err)
	assert.Len(t, window, 3)
}

func TestReadingExclusionIsReversible(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	readings := []model.Reading{testReading(batch.ID, time.Now().UTC(), 1.0500)}
	_, err := store.SaveReadings(ctx, readings)
	require.NoError(t, err)
	readingID := readings[0].ID
	require.Positive(t, readingID)

	require.NoError(t, store.SetReadingExclusion(ctx, readingID, true, model.ExcludeOutlierManual))

	// Default queries hide it; IncludeExcluded shows it with its reason.
	visible, err := store.GetReadings(ctx, batch.ID, service.ReadingFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := store.GetReadings(ctx, batch.ID, service.ReadingFilter{IncludeExcluded: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsExcluded)
	assert.Equal(t, model.ExcludeOutlierManual, all[0].ExcludeReason)

	// Restoring clears the reason.
	require.NoError(t, store.SetReadingExclusion(ctx, readingID, false, model.ExcludeNone))
	visible, err = store.GetReadings(ctx, batch.ID, service.ReadingFilter{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, model.ExcludeNone, visible[0].ExcludeReason)
}

func TestGetLatestReading(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	latest, err := store.GetLatestReading(ctx, batch.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 8, 4, 8, 0, 0, 0, time.UTC)
	_, err = store.SaveReadings(ctx, []model.Reading{
		testReading(batch.ID, base, 1.0500),
		testReading(batch.ID, base.Add(time.Hour), 1.0490),
	})
	require.NoError(t, err)

	latest, err = store.GetLatestReading(ctx, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1.0490, latest.Gravity)
}

func TestSaveRecapFirstWriterWins(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	recap := &model.DailyRecap{
		BatchID:        batch.ID,
		Date:           "2026-08-03",
		RecordedAt:     time.Date(2026, 8, 3, 23, 59, 59, 0, time.UTC),
		OpeningGravity: 1.0521,
		ClosingGravity: 1.0407,
		GravityDelta:   0.0114,
		ReadingCount:   12,
		DayNumber:      3,
	}

	inserted, err := store.SaveRecap(ctx, recap)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second write for the same date is a no-op, not an error.
	dup := *recap
	dup.ID = 0
	dup.ClosingGravity = 1.0300
	inserted, err = store.SaveRecap(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	recaps, err := store.GetRecaps(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, recaps, 1)
	assert.Equal(t, 1.0407, recaps[0].ClosingGravity)

	exists, err := store.RecapExists(ctx, batch.ID, "2026-08-03")
	require.NoError(t, err)
	assert.True(t, exists)

	// Deleting reopens the date.
	require.NoError(t, store.DeleteRecap(ctx, batch.ID, "2026-08-03"))
	inserted, err = store.SaveRecap(ctx, &dup)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestSaveRecapConcurrent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan bool, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recap := &model.DailyRecap{
				BatchID:        batch.ID,
				Date:           "2026-08-03",
				RecordedAt:     time.Date(2026, 8, 3, 23, 59, 59, 0, time.UTC),
				OpeningGravity: 1.0521,
				ClosingGravity: 1.0407,
				ReadingCount:   12,
				DayNumber:      3,
			}
			var inserted bool
			err := common.WithRetry(ctx, func() error {
				var saveErr error
				inserted, saveErr = store.SaveRecap(ctx, recap)
				return saveErr
			}, service.RetryOptions{})
			assert.NoError(t, err)
			results <- inserted
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for inserted := range results {
		if inserted {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestPhasesLifecycle(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	_, err := store.GetActivePhase(ctx, batch.ID)
	assert.ErrorIs(t, err, common.ErrNoActivePhase)

	target := 1.010
	phases := []model.Phase{
		{
			Name:      "primary",
			Status:    model.PhasePending,
			SortOrder: 1,
			Criteria: model.Compound{Criteria: []model.CompletionCriteria{
				model.GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0.002},
				model.GravityReached{TargetGravity: &target},
			}},
		},
		{Name: "aging", Status: model.PhasePending, SortOrder: 2, Criteria: model.Manual{}},
	}
	require.NoError(t, store.CreatePhases(ctx, batch.ID, phases))
	require.Positive(t, phases[0].ID)

	now := time.Now().UTC().Truncate(time.Second)
	phases[0].Status = model.PhaseActive
	phases[0].StartedAt = &now
	require.NoError(t, store.UpdatePhase(ctx, &phases[0]))

	active, err := store.GetActivePhase(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "primary", active.Name)

	// The criteria tree survives the storage round trip.
	compound, ok := active.Criteria.(model.Compound)
	require.True(t, ok)
	require.Len(t, compound.Criteria, 2)
	stable, ok := compound.Criteria[0].(model.GravityStable)
	require.True(t, ok)
	assert.Equal(t, 3, stable.ConsecutiveReadings)

	loaded, err := store.GetPhases(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "primary", loaded[0].Name)
	assert.Equal(t, "aging", loaded[1].Name)
}

func TestActions(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	phases := []model.Phase{{Name: "primary", Status: model.PhaseActive, SortOrder: 1}}
	require.NoError(t, store.CreatePhases(ctx, batch.ID, phases))

	interval := 1
	action := &model.PhaseAction{
		PhaseID:      phases[0].ID,
		Name:         "punch-down",
		IntervalDays: &interval,
	}
	id, err := store.CreateAction(ctx, action)
	require.NoError(t, err)
	require.Positive(t, id)

	completedAt := time.Date(2026, 8, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkActionCompleted(ctx, id, completedAt))

	actions, err := store.GetActionsByPhase(ctx, phases[0].ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.NotNil(t, actions[0].LastCompletedAt)
	assert.True(t, actions[0].LastCompletedAt.Equal(completedAt))
}

func TestEvents(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	event := &model.BatchEvent{
		BatchID:    batch.ID,
		Name:       "racking",
		Note:       "into glass carboy",
		OccurredAt: time.Date(2026, 8, 4, 9, 0, 0, 0, time.UTC),
	}
	id, err := store.SaveEvent(ctx, event)
	require.NoError(t, err)
	require.Positive(t, id)

	events, err := store.GetEvents(ctx, batch.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "racking", events[0].Name)
	assert.Equal(t, "into glass carboy", events[0].Note)
}

func TestAlertsDedupeAndResolve(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	alert := &model.Alert{
		BatchID:  batch.ID,
		Type:     model.AlertStuckFermentation,
		Severity: model.SeverityWarning,
		Message:  "gravity unchanged",
	}
	id, err := store.SaveAlert(ctx, alert)
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	recent, err := store.HasRecentUnresolvedAlert(ctx, batch.ID, model.AlertStuckFermentation, cutoff)
	require.NoError(t, err)
	assert.True(t, recent)

	// Other types are unaffected.
	recent, err = store.HasRecentUnresolvedAlert(ctx, batch.ID, model.AlertTemperature, cutoff)
	require.NoError(t, err)
	assert.False(t, recent)

	require.NoError(t, store.ResolveAlert(ctx, id))

	// Resolved alerts no longer suppress new ones.
	recent, err = store.HasRecentUnresolvedAlert(ctx, batch.ID, model.AlertStuckFermentation, cutoff)
	require.NoError(t, err)
	assert.False(t, recent)

	// Resolving twice is an error: the row is already resolved.
	assert.ErrorIs(t, store.ResolveAlert(ctx, id), common.ErrNotFound)

	open, err := store.ListAlerts(ctx, batch.ID, true)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := store.ListAlerts(ctx, batch.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved())
}

func TestSettings(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	value, err := store.GetSetting(ctx, SettingTimezone)
	require.NoError(t, err)
	assert.Empty(t, value, "unset keys read as empty, not an error")

	require.NoError(t, store.SetSetting(ctx, SettingTimezone, "America/Chicago"))
	value, err = store.GetSetting(ctx, SettingTimezone)
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", value)

	// Upsert overwrites.
	require.NoError(t, store.SetSetting(ctx, SettingTimezone, "UTC"))
	value, err = store.GetSetting(ctx, SettingTimezone)
	require.NoError(t, err)
	assert.Equal(t, "UTC", value)
}

func TestCleanupTransaction(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	readings := []model.Reading{testReading(batch.ID, time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC), 1.0500)}
	_, err := store.SaveReadings(ctx, readings)
	require.NoError(t, err)

	recap := &model.DailyRecap{
		BatchID:        batch.ID,
		Date:           "2026-08-03",
		RecordedAt:     time.Date(2026, 8, 3, 23, 59, 59, 0, time.UTC),
		OpeningGravity: 1.0500,
		ClosingGravity: 1.0500,
		ReadingCount:   1,
		DayNumber:      1,
	}
	_, err = store.SaveRecap(ctx, recap)
	require.NoError(t, err)

	// Exclude the reading and invalidate the recap atomically.
	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetReadingExclusion(ctx, readings[0].ID, true, model.ExcludeOutlierManual))
	require.NoError(t, tx.DeleteRecap(ctx, batch.ID, "2026-08-03"))
	require.NoError(t, tx.Commit())

	visible, err := store.GetReadings(ctx, batch.ID, service.ReadingFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	exists, err := store.RecapExists(ctx, batch.ID, "2026-08-03")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTransactionRollback(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	readings := []model.Reading{testReading(batch.ID, time.Now().UTC(), 1.0500)}
	_, err := store.SaveReadings(ctx, readings)
	require.NoError(t, err)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetReadingExclusion(ctx, readings[0].ID, true, model.ExcludeOutlierManual))
	require.NoError(t, tx.Rollback())

	visible, err := store.GetReadings(ctx, batch.ID, service.ReadingFilter{})
	require.NoError(t, err)
	assert.Len(t, visible, 1)
}

func TestSaveReadingsRejectsInvalid(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	batch := createTestBatch(t, store)

	bad := []model.Reading{testReading(batch.ID, time.Now().UTC(), 2.5)}
	_, err := store.SaveReadings(ctx, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plausible range")
}
