package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS batches (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					style TEXT NOT NULL,
					status TEXT NOT NULL,
					original_gravity REAL,
					expected_final_gravity REAL,
					current_phase_id INTEGER,
					timezone TEXT NOT NULL DEFAULT 'UTC',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS phases (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					status TEXT NOT NULL,
					sort_order INTEGER NOT NULL,
					started_at DATETIME,
					completed_at DATETIME,
					expected_duration_days INTEGER,
					target_temp_low REAL,
					target_temp_high REAL,
					target_temp_unit TEXT,
					criteria TEXT,
					FOREIGN KEY (batch_id) REFERENCES batches(id)
				)`,
				`CREATE INDEX idx_phases_batch ON phases(batch_id, sort_order)`,

				`CREATE TABLE IF NOT EXISTS phase_actions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					phase_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					note TEXT,
					sort_order INTEGER NOT NULL DEFAULT 0,
					interval_days INTEGER,
					due_at DATETIME,
					trigger_gravity REAL,
					trigger_attenuation REAL,
					last_completed_at DATETIME,
					FOREIGN KEY (phase_id) REFERENCES phases(id)
				)`,
				`CREATE INDEX idx_phase_actions_phase ON phase_actions(phase_id)`,

				`CREATE TABLE IF NOT EXISTS readings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id INTEGER NOT NULL,
					hash TEXT UNIQUE NOT NULL,
					gravity REAL NOT NULL,
					temperature REAL,
					temp_unit TEXT,
					source TEXT NOT NULL DEFAULT 'manual',
					recorded_at DATETIME NOT NULL,
					is_excluded INTEGER NOT NULL DEFAULT 0,
					exclude_reason TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (batch_id) REFERENCES batches(id)
				)`,
				`CREATE INDEX idx_readings_batch_time ON readings(batch_id, recorded_at)`,

				`CREATE TABLE IF NOT EXISTS batch_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					note TEXT,
					occurred_at DATETIME NOT NULL,
					FOREIGN KEY (batch_id) REFERENCES batches(id)
				)`,
				`CREATE INDEX idx_batch_events_batch_time ON batch_events(batch_id, occurred_at)`,

				`CREATE TABLE IF NOT EXISTS daily_recaps (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id INTEGER NOT NULL,
					recap_date TEXT NOT NULL,
					recorded_at DATETIME NOT NULL,
					opening_gravity REAL NOT NULL,
					closing_gravity REAL NOT NULL,
					gravity_delta REAL NOT NULL,
					avg_temperature REAL,
					temp_min REAL,
					temp_max REAL,
					temp_unit TEXT,
					reading_count INTEGER NOT NULL,
					day_number INTEGER NOT NULL,
					FOREIGN KEY (batch_id) REFERENCES batches(id)
				)`,
				// The recap generator relies on this to stay idempotent under
				// concurrent timeline reads.
				`CREATE UNIQUE INDEX idx_daily_recaps_batch_date ON daily_recaps(batch_id, recap_date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add alerts table",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS alerts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id INTEGER NOT NULL,
					alert_type TEXT NOT NULL,
					severity TEXT NOT NULL,
					message TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					resolved_at DATETIME,
					FOREIGN KEY (batch_id) REFERENCES batches(id)
				)`,
				`CREATE INDEX idx_alerts_batch_type ON alerts(batch_id, alert_type, created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add settings key-value store",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS settings (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
