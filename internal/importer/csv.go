// Package importer ingests readings from CSV exports of hydrometer logs.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
	"github.com/schollz/progressbar/v3"
)

// Accepted timestamp layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Result summarizes one import run.
type Result struct {
	RowErrors []error
	Parsed    int
	Inserted  int
	Skipped   int // duplicates dropped by hash
}

// Importer parses reading CSVs and saves them with hash-based dedupe, so
// re-importing the same export is harmless.
type Importer struct {
	store service.Storage
}

// New creates an importer over the given storage.
func New(store service.Storage) *Importer {
	return &Importer{store: store}
}

// Import reads a CSV of readings for one batch. The header row maps columns;
// recognized names are time/timestamp/date, gravity/sg, temperature/temp, and
// unit/temp_unit. Bad rows are collected, not fatal: the rest of the file
// still imports.
func (im *Importer) Import(ctx context.Context, batch model.Batch, r io.Reader, showProgress bool) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV rows: %w", err)
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(records)), "importing readings")
	}

	result := &Result{}
	var readings []model.Reading
	for i, record := range records {
		if bar != nil {
			_ = bar.Add(1)
		}

		reading, rowErr := parseRow(record, cols, batch.ID)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, fmt.Errorf("row %d: %w", i+2, rowErr))
			continue
		}
		readings = append(readings, reading)
		result.Parsed++
	}

	if len(readings) > 0 {
		inserted, saveErr := im.store.SaveReadings(ctx, readings)
		if saveErr != nil {
			return result, fmt.Errorf("failed to save readings: %w", saveErr)
		}
		result.Inserted = inserted
		result.Skipped = len(readings) - inserted
	}
	return result, nil
}

// columnMap locates the recognized columns in the header.
type columnMap struct {
	time        int
	gravity     int
	temperature int
	unit        int
}

func mapColumns(header []string) (columnMap, error) {
	cols := columnMap{time: -1, gravity: -1, temperature: -1, unit: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "timestamp", "date", "recorded_at":
			cols.time = i
		case "gravity", "sg", "specific_gravity":
			cols.gravity = i
		case "temperature", "temp":
			cols.temperature = i
		case "unit", "temp_unit", "temperature_unit":
			cols.unit = i
		}
	}
	if cols.time < 0 || cols.gravity < 0 {
		return cols, fmt.Errorf("CSV header must include time and gravity columns, got %v", header)
	}
	return cols, nil
}

func parseRow(record []string, cols columnMap, batchID int64) (model.Reading, error) {
	var reading model.Reading
	reading.BatchID = batchID
	reading.Source = "import"

	if cols.time >= len(record) || cols.gravity >= len(record) {
		return reading, fmt.Errorf("too few columns")
	}

	recordedAt, err := parseTime(record[cols.time])
	if err != nil {
		return reading, err
	}
	reading.RecordedAt = recordedAt

	gravity, err := strconv.ParseFloat(strings.TrimSpace(record[cols.gravity]), 64)
	if err != nil {
		return reading, fmt.Errorf("invalid gravity %q", record[cols.gravity])
	}
	reading.Gravity = gravity

	if cols.temperature >= 0 && cols.temperature < len(record) {
		raw := strings.TrimSpace(record[cols.temperature])
		if raw != "" {
			temp, tempErr := strconv.ParseFloat(raw, 64)
			if tempErr != nil {
				return reading, fmt.Errorf("invalid temperature %q", raw)
			}
			reading.Temperature = &temp
			reading.TempUnit = model.UnitFahrenheit
			if cols.unit >= 0 && cols.unit < len(record) {
				switch strings.ToUpper(strings.TrimSpace(record[cols.unit])) {
				case "C", "CELSIUS":
					reading.TempUnit = model.UnitCelsius
				case "F", "FAHRENHEIT", "":
				default:
					return reading, fmt.Errorf("invalid temperature unit %q", record[cols.unit])
				}
			}
		}
	}

	if err := reading.Validate(); err != nil {
		return reading, err
	}
	return reading, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
