package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/hbenedict/airlock/internal/analysis"
	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cleanupStore struct {
	service.Storage
	readings []model.Reading
}

func (f *cleanupStore) GetReadings(context.Context, int64, service.ReadingFilter) ([]model.Reading, error) {
	return f.readings, nil
}

func TestReviewOutliersNoReadings(t *testing.T) {
	batch := model.Batch{ID: 7, Name: "saison", Status: model.BatchActive}

	_, err := ReviewOutliers(context.Background(), &cleanupStore{}, batch, analysis.OutlierOptions{})
	assert.ErrorIs(t, err, common.ErrNoReadings)
}

func TestReviewOutliersFlagsSpike(t *testing.T) {
	base := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	store := &cleanupStore{}
	for i := 0; i < 20; i++ {
		gravity := 1.050 - float64(i)*0.001
		if i == 10 {
			gravity += 0.030
		}
		store.readings = append(store.readings, model.Reading{
			ID:         int64(i + 1),
			BatchID:    7,
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
			Gravity:    gravity,
		})
	}
	batch := model.Batch{ID: 7, Name: "saison", Status: model.BatchActive}

	result, err := ReviewOutliers(context.Background(), store, batch, analysis.OutlierOptions{})
	require.NoError(t, err)
	require.Len(t, result.MidLogOutliers, 1)
	assert.Equal(t, int64(11), result.MidLogOutliers[0].ReadingID)
}
