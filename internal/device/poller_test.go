package device

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
	"github.com/hbenedict/airlock/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pollStore is just enough storage for the ingest path the poller drives.
type pollStore struct {
	service.Storage
	saved []model.Reading
}

func (f *pollStore) SaveReadings(_ context.Context, readings []model.Reading) (int, error) {
	f.saved = append(f.saved, readings...)
	return len(readings), nil
}

func (f *pollStore) GetReadings(context.Context, int64, service.ReadingFilter) ([]model.Reading, error) {
	return nil, nil
}

func (f *pollStore) GetEvents(context.Context, int64, int) ([]model.BatchEvent, error) {
	return nil, nil
}

func (f *pollStore) GetActivePhase(context.Context, int64) (*model.Phase, error) {
	return nil, fmt.Errorf("loading phase: %w", common.ErrNoActivePhase)
}

// startPoller runs a supervisor for the duration of the test.
func startPoller(t *testing.T, store *pollStore) *Poller {
	t.Helper()
	batch := model.Batch{ID: 5, Name: "mead", Status: model.BatchActive}
	poller := NewPoller(workflow.NewIngester(store), batch)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go poller.Run(ctx)
	return poller
}

func deviceServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestPollerLifecycle(t *testing.T) {
	store := &pollStore{}
	server := deviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"gravity":1.0450,"temperature":68.0,"temp_unit":"F","timestamp":"2026-08-20T12:00:00Z"}`)
	})

	poller := startPoller(t, store)
	ctx := context.Background()

	status, err := poller.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Zero(t, status.PollCount)

	// Start polls once immediately, before it returns.
	require.NoError(t, poller.Start(ctx, Config{URL: server.URL, Interval: time.Hour}))

	status, err = poller.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 1, status.PollCount)
	assert.Equal(t, 1, status.InsertCount)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastPollAt.IsZero())

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, int64(5), saved.BatchID)
	assert.Equal(t, "device", saved.Source)
	assert.Equal(t, 1.0450, saved.Gravity)
	assert.Equal(t, time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC), saved.RecordedAt)
	require.NotNil(t, saved.Temperature)
	assert.Equal(t, model.UnitFahrenheit, saved.TempUnit)

	assert.ErrorIs(t, poller.Start(ctx, Config{URL: server.URL}), common.ErrPollerRunning)

	require.NoError(t, poller.Stop(ctx))
	status, err = poller.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)

	assert.ErrorIs(t, poller.Stop(ctx), common.ErrPollerNotRunning)
}

func TestPollerCapturesDeviceErrors(t *testing.T) {
	store := &pollStore{}
	server := deviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no tilt here", http.StatusInternalServerError)
	})

	poller := startPoller(t, store)
	ctx := context.Background()

	require.NoError(t, poller.Start(ctx, Config{URL: server.URL, Interval: time.Hour}))

	status, err := poller.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running, "a failed poll keeps the session alive")
	assert.Equal(t, 1, status.PollCount)
	assert.Zero(t, status.InsertCount)
	assert.Contains(t, status.LastError, "status 500")
	assert.Empty(t, store.saved)
}

func TestPollerRejectsInvalidPayload(t *testing.T) {
	store := &pollStore{}
	server := deviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"gravity":0}`)
	})

	poller := startPoller(t, store)
	ctx := context.Background()

	require.NoError(t, poller.Start(ctx, Config{URL: server.URL, Interval: time.Hour}))

	status, err := poller.Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, status.LastError, "invalid reading")
	assert.Empty(t, store.saved)
}

func TestPollerCelsiusUnit(t *testing.T) {
	store := &pollStore{}
	server := deviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"gravity":1.0300,"temperature":19.5,"temp_unit":"celsius"}`)
	})

	poller := startPoller(t, store)
	ctx := context.Background()
	require.NoError(t, poller.Start(ctx, Config{URL: server.URL, Interval: time.Hour}))

	require.Len(t, store.saved, 1)
	assert.Equal(t, model.UnitCelsius, store.saved[0].TempUnit)
	// No device timestamp: recorded when polled.
	assert.WithinDuration(t, time.Now(), store.saved[0].RecordedAt, time.Minute)
}

func TestPollerShutdown(t *testing.T) {
	poller := startPoller(t, &pollStore{})
	ctx := context.Background()

	require.NoError(t, poller.Shutdown(ctx))

	_, err := poller.Status(ctx)
	assert.ErrorIs(t, err, common.ErrPollerNotRunning)
}

func TestPollerRunExitStopsSession(t *testing.T) {
	poller := NewPoller(workflow.NewIngester(&pollStore{}), model.Batch{ID: 5})

	ctx, cancel := context.WithCancel(context.Background())
	go poller.Run(ctx)
	cancel()
	<-poller.done

	// Once the supervisor is gone, every command path reports not running
	// instead of blocking.
	_, err := poller.Status(context.Background())
	assert.ErrorIs(t, err, common.ErrPollerNotRunning)
	assert.ErrorIs(t, poller.Stop(context.Background()), common.ErrPollerNotRunning)
}
