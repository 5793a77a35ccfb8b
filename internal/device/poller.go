// Package device polls wireless hydrometers over HTTP and feeds their
// readings into the ingest pipeline.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/workflow"
)

// DefaultInterval is how often the poller queries the device when the
// configuration does not say otherwise.
const DefaultInterval = 15 * time.Minute

// deviceReading is the JSON payload most tilt-style hydrometer bridges serve.
type deviceReading struct {
	Gravity     float64  `json:"gravity"`
	Temperature *float64 `json:"temperature,omitempty"`
	TempUnit    string   `json:"temp_unit,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
}

// Status is a point-in-time snapshot of the poller's state.
type Status struct {
	LastPollAt  time.Time
	LastError   string
	Running     bool
	PollCount   int
	InsertCount int
}

// Config controls one polling session.
type Config struct {
	URL      string
	Interval time.Duration
}

// Poller supervises a background loop that fetches device readings on an
// interval. All state lives inside the supervisor goroutine; Start, Stop, and
// Status communicate with it over channels, so there is no shared mutable
// state to lock.
type Poller struct {
	ingester *workflow.Ingester
	client   *http.Client
	batch    model.Batch

	commands chan command
	done     chan struct{}
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdStatus
	cmdShutdown
)

type command struct {
	kind   commandKind
	config Config
	reply  chan commandReply
}

type commandReply struct {
	err    error
	status Status
}

// NewPoller creates a poller for one batch. Run must be started before any
// other method is called.
func NewPoller(ingester *workflow.Ingester, batch model.Batch) *Poller {
	return &Poller{
		ingester: ingester,
		client:   &http.Client{Timeout: 10 * time.Second},
		batch:    batch,
		commands: make(chan command),
		done:     make(chan struct{}),
	}
}

// Run is the supervisor loop. It owns all poller state and exits when ctx is
// canceled, stopping any active polling session first.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)

	var (
		status Status
		ticker *time.Ticker
		tick   <-chan time.Time
		config Config
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tick = nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			status.Running = false
			return

		case <-tick:
			p.pollOnce(ctx, config, &status)

		case cmd := <-p.commands:
			switch cmd.kind {
			case cmdStart:
				if status.Running {
					cmd.reply <- commandReply{err: common.ErrPollerRunning}
					continue
				}
				config = cmd.config
				if config.Interval <= 0 {
					config.Interval = DefaultInterval
				}
				status = Status{Running: true}
				ticker = time.NewTicker(config.Interval)
				tick = ticker.C
				slog.Info("poller started", "batch", p.batch.ID, "url", config.URL, "interval", config.Interval)
				// Poll immediately rather than waiting a full interval.
				p.pollOnce(ctx, config, &status)
				cmd.reply <- commandReply{}

			case cmdStop:
				if !status.Running {
					cmd.reply <- commandReply{err: common.ErrPollerNotRunning}
					continue
				}
				stopTicker()
				status.Running = false
				slog.Info("poller stopped", "batch", p.batch.ID, "polls", status.PollCount)
				cmd.reply <- commandReply{}

			case cmdStatus:
				cmd.reply <- commandReply{status: status}

			case cmdShutdown:
				stopTicker()
				status.Running = false
				cmd.reply <- commandReply{}
				return
			}
		}
	}
}

// Start begins a polling session. Returns common.ErrPollerRunning if one is
// already active.
func (p *Poller) Start(ctx context.Context, config Config) error {
	reply, err := p.send(ctx, command{kind: cmdStart, config: config})
	if err != nil {
		return err
	}
	return reply.err
}

// Stop ends the active polling session. Returns common.ErrPollerNotRunning if
// none is active.
func (p *Poller) Stop(ctx context.Context) error {
	reply, err := p.send(ctx, command{kind: cmdStop})
	if err != nil {
		return err
	}
	return reply.err
}

// Status returns a snapshot of the poller's state.
func (p *Poller) Status(ctx context.Context) (Status, error) {
	reply, err := p.send(ctx, command{kind: cmdStatus})
	if err != nil {
		return Status{}, err
	}
	return reply.status, nil
}

// Shutdown stops the supervisor loop itself.
func (p *Poller) Shutdown(ctx context.Context) error {
	_, err := p.send(ctx, command{kind: cmdShutdown})
	return err
}

func (p *Poller) send(ctx context.Context, cmd command) (commandReply, error) {
	cmd.reply = make(chan commandReply, 1)
	select {
	case p.commands <- cmd:
	case <-p.done:
		return commandReply{}, common.ErrPollerNotRunning
	case <-ctx.Done():
		return commandReply{}, ctx.Err()
	}
	select {
	case reply := <-cmd.reply:
		return reply, nil
	case <-p.done:
		return commandReply{}, common.ErrPollerNotRunning
	case <-ctx.Done():
		return commandReply{}, ctx.Err()
	}
}

// pollOnce fetches one reading and records it. Failures are captured in the
// status snapshot; the loop keeps going.
func (p *Poller) pollOnce(ctx context.Context, config Config, status *Status) {
	status.PollCount++
	status.LastPollAt = time.Now()
	status.LastError = ""

	reading, err := p.fetch(ctx, config.URL)
	if err != nil {
		status.LastError = err.Error()
		common.LogError(err, "device poll failed", common.Fields{"batch": p.batch.ID, "url": config.URL})
		return
	}

	inserted, alerts, err := p.ingester.RecordReading(ctx, p.batch, reading)
	if err != nil {
		status.LastError = err.Error()
		common.LogError(err, "failed to record polled reading", common.Fields{"batch": p.batch.ID})
		return
	}
	if inserted {
		status.InsertCount++
	}
	slog.Debug("poll complete", "batch", p.batch.ID, "inserted", inserted, "alerts", len(alerts))
}

// fetch retrieves and validates one reading from the device endpoint.
func (p *Poller) fetch(ctx context.Context, url string) (model.Reading, error) {
	var reading model.Reading

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return reading, fmt.Errorf("failed to build device request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return reading, fmt.Errorf("device request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return reading, fmt.Errorf("device returned status %d", resp.StatusCode)
	}

	var payload deviceReading
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return reading, fmt.Errorf("failed to decode device response: %w", err)
	}

	recordedAt := time.Now()
	if payload.Timestamp != "" {
		if t, parseErr := time.Parse(time.RFC3339, payload.Timestamp); parseErr == nil {
			recordedAt = t
		}
	}

	reading = model.Reading{
		BatchID:     p.batch.ID,
		RecordedAt:  recordedAt,
		Gravity:     payload.Gravity,
		Temperature: payload.Temperature,
		Source:      "device",
	}
	if payload.Temperature != nil {
		switch payload.TempUnit {
		case "C", "c", "celsius":
			reading.TempUnit = model.UnitCelsius
		default:
			reading.TempUnit = model.UnitFahrenheit
		}
	}
	if err := reading.Validate(); err != nil {
		return reading, fmt.Errorf("device sent invalid reading: %w", err)
	}
	return reading, nil
}
