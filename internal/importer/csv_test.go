package importer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStore records what the importer asks to save. The embedded interface
// panics on any other storage call.
type captureStore struct {
	service.Storage
	saved    []model.Reading
	inserted int
}

func (c *captureStore) SaveReadings(_ context.Context, readings []model.Reading) (int, error) {
	c.saved = readings
	if c.inserted >= 0 {
		return c.inserted, nil
	}
	return len(readings), nil
}

func newCaptureStore() *captureStore {
	return &captureStore{inserted: -1}
}

func importCSV(t *testing.T, store *captureStore, csvText string) *Result {
	t.Helper()
	batch := model.Batch{ID: 3, Name: "cider", Status: model.BatchActive}
	result, err := New(store).Import(context.Background(), batch, strings.NewReader(csvText), false)
	require.NoError(t, err)
	return result
}

func TestImportBasic(t *testing.T) {
	store := newCaptureStore()
	result := importCSV(t, store, strings.Join([]string{
		"time,gravity,temperature,unit",
		"2026-08-01T08:00:00Z,1.0600,68.5,F",
		"2026-08-01 20:00:00,1.0550,19.2,C",
		"2026-08-02,1.0500,,",
	}, "\n"))

	assert.Equal(t, 3, result.Parsed)
	assert.Equal(t, 3, result.Inserted)
	assert.Zero(t, result.Skipped)
	assert.Empty(t, result.RowErrors)

	require.Len(t, store.saved, 3)
	first := store.saved[0]
	assert.Equal(t, int64(3), first.BatchID)
	assert.Equal(t, "import", first.Source)
	assert.Equal(t, time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC), first.RecordedAt)
	assert.Equal(t, 1.0600, first.Gravity)
	require.NotNil(t, first.Temperature)
	assert.Equal(t, 68.5, *first.Temperature)
	assert.Equal(t, model.UnitFahrenheit, first.TempUnit)

	assert.Equal(t, model.UnitCelsius, store.saved[1].TempUnit)

	// Blank temperature column means no temperature.
	assert.Nil(t, store.saved[2].Temperature)
}

func TestImportHeaderAliases(t *testing.T) {
	store := newCaptureStore()
	result := importCSV(t, store, strings.Join([]string{
		"Timestamp, SG, Temp",
		"2026-08-01 12:00,1.0480,66",
	}, "\n"))

	assert.Equal(t, 1, result.Parsed)
	require.Len(t, store.saved, 1)
	assert.Equal(t, 1.0480, store.saved[0].Gravity)
	// No unit column defaults to Fahrenheit.
	assert.Equal(t, model.UnitFahrenheit, store.saved[0].TempUnit)
}

func TestImportMissingRequiredColumns(t *testing.T) {
	batch := model.Batch{ID: 3}
	_, err := New(newCaptureStore()).Import(context.Background(), batch,
		strings.NewReader("gravity,temperature\n1.0500,68\n"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time and gravity")
}

func TestImportBadRowsAreCollected(t *testing.T) {
	store := newCaptureStore()
	result := importCSV(t, store, strings.Join([]string{
		"time,gravity",
		"2026-08-01T08:00:00Z,1.0600",
		"not-a-time,1.0550",
		"2026-08-02T08:00:00Z,banana",
		"2026-08-03T08:00:00Z,5.0000",
		"2026-08-04T08:00:00Z,1.0400",
	}, "\n"))

	assert.Equal(t, 2, result.Parsed)
	require.Len(t, result.RowErrors, 3)
	// Row numbers count the header as row 1.
	assert.Contains(t, result.RowErrors[0].Error(), "row 3")
	assert.Contains(t, result.RowErrors[1].Error(), "row 4")
	assert.Contains(t, result.RowErrors[2].Error(), "row 5")

	require.Len(t, store.saved, 2)
	assert.Equal(t, 1.0600, store.saved[0].Gravity)
	assert.Equal(t, 1.0400, store.saved[1].Gravity)
}

func TestImportInvalidUnitIsARowError(t *testing.T) {
	store := newCaptureStore()
	result := importCSV(t, store, strings.Join([]string{
		"time,gravity,temp,unit",
		"2026-08-01T08:00:00Z,1.0600,68,kelvin",
	}, "\n"))

	assert.Zero(t, result.Parsed)
	require.Len(t, result.RowErrors, 1)
	assert.Contains(t, result.RowErrors[0].Error(), "kelvin")
	assert.Empty(t, store.saved)
}

func TestImportReportsDuplicatesAsSkipped(t *testing.T) {
	store := newCaptureStore()
	store.inserted = 1 // storage deduped one of the two by hash
	result := importCSV(t, store, strings.Join([]string{
		"time,gravity",
		"2026-08-01T08:00:00Z,1.0600",
		"2026-08-01T20:00:00Z,1.0550",
	}, "\n"))

	assert.Equal(t, 2, result.Parsed)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
}

func TestImportEmptyFileBeyondHeader(t *testing.T) {
	store := newCaptureStore()
	result := importCSV(t, store, "time,gravity\n")

	assert.Zero(t, result.Parsed)
	assert.Zero(t, result.Inserted)
	assert.Nil(t, store.saved, "nothing to save means no storage call")
}
