// Package service defines the interfaces between the analysis core and its
// collaborators, chiefly the persistence layer.
package service

import (
	"context"
	"time"

	"github.com/hbenedict/airlock/internal/model"
)

// ReadingFilter defines query options for reading feeds. The zero value
// returns all non-excluded readings ascending by time.
type ReadingFilter struct {
	Since           *time.Time
	Until           *time.Time
	Limit           int
	Descending      bool
	IncludeExcluded bool
}

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Batch operations
	CreateBatch(ctx context.Context, batch *model.Batch) (int64, error)
	GetBatch(ctx context.Context, id int64) (*model.Batch, error)
	ListBatches(ctx context.Context) ([]model.Batch, error)
	UpdateBatch(ctx context.Context, batch *model.Batch) error

	// Phase operations
	CreatePhases(ctx context.Context, batchID int64, phases []model.Phase) error
	GetPhases(ctx context.Context, batchID int64) ([]model.Phase, error)
	GetActivePhase(ctx context.Context, batchID int64) (*model.Phase, error)
	UpdatePhase(ctx context.Context, phase *model.Phase) error

	// Phase action operations
	CreateAction(ctx context.Context, action *model.PhaseAction) (int64, error)
	GetActionsByPhase(ctx context.Context, phaseID int64) ([]model.PhaseAction, error)
	MarkActionCompleted(ctx context.Context, actionID int64, at time.Time) error

	// Reading operations
	SaveReadings(ctx context.Context, readings []model.Reading) (int, error)
	GetReadings(ctx context.Context, batchID int64, filter ReadingFilter) ([]model.Reading, error)
	GetLatestReading(ctx context.Context, batchID int64) (*model.Reading, error)
	SetReadingExclusion(ctx context.Context, readingID int64, excluded bool, reason model.ExcludeReason) error

	// Event operations
	SaveEvent(ctx context.Context, event *model.BatchEvent) (int64, error)
	GetEvents(ctx context.Context, batchID int64, limit int) ([]model.BatchEvent, error)

	// Recap operations. SaveRecap reports false when the date was already
	// recapped (the unique batch+date constraint makes it first-writer-wins).
	SaveRecap(ctx context.Context, recap *model.DailyRecap) (bool, error)
	GetRecaps(ctx context.Context, batchID int64) ([]model.DailyRecap, error)
	RecapExists(ctx context.Context, batchID int64, date string) (bool, error)
	DeleteRecap(ctx context.Context, batchID int64, date string) error

	// Alert operations
	SaveAlert(ctx context.Context, alert *model.Alert) (int64, error)
	HasRecentUnresolvedAlert(ctx context.Context, batchID int64, alertType model.AlertType, since time.Time) (bool, error)
	ListAlerts(ctx context.Context, batchID int64, unresolvedOnly bool) ([]model.Alert, error)
	ResolveAlert(ctx context.Context, alertID int64) error

	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction scopes the mutations the cleanup workflow applies atomically:
// flipping reading exclusions and invalidating the affected recaps.
type Transaction interface {
	Commit() error
	Rollback() error
	SetReadingExclusion(ctx context.Context, readingID int64, excluded bool, reason model.ExcludeReason) error
	DeleteRecap(ctx context.Context, batchID int64, date string) error
}

// RetryOptions configures retry behavior for storage operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
