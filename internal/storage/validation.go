// Package storage provides the SQLite persistence layer for batches,
// readings, phases, recaps, and alerts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hbenedict/airlock/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrEmptySlice   = errors.New("slice cannot be empty")
	ErrInvalidID    = errors.New("id must be positive")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures a database ID is positive.
func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidID, paramName)
	}
	return nil
}

// validateReadings validates a slice of readings.
func validateReadings(readings []model.Reading) error {
	if readings == nil {
		return fmt.Errorf("%w: readings", ErrNilParameter)
	}
	if len(readings) == 0 {
		return fmt.Errorf("%w: readings", ErrEmptySlice)
	}

	for i := range readings {
		if err := readings[i].Validate(); err != nil {
			return fmt.Errorf("reading at index %d: %w", i, err)
		}
		if err := validateID(readings[i].BatchID, "batch id"); err != nil {
			return fmt.Errorf("reading at index %d: %w", i, err)
		}
	}
	return nil
}
