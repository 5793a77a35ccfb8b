package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/config"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/service"
	"github.com/hbenedict/airlock/internal/storage"
	"github.com/spf13/viper"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/airlock/airlock.db"
	}

	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// resolveBatch looks a batch up by numeric ID or by name.
func resolveBatch(ctx context.Context, store service.Storage, ref string) (*model.Batch, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return store.GetBatch(ctx, id)
	}

	batches, err := store.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	for i := range batches {
		if strings.EqualFold(batches[i].Name, ref) {
			return &batches[i], nil
		}
	}
	return nil, common.NewUserError(fmt.Sprintf("no batch named %q", ref), common.ErrNotFound)
}

// parseWhen parses a --at flag value, defaulting to now when empty.
func parseWhen(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (use RFC3339 or 2006-01-02 15:04)", raw)
}

// parseGravityArg parses a specific gravity argument like "1.052".
func parseGravityArg(raw string) (float64, error) {
	g, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid gravity %q", raw)
	}
	return g, nil
}

// formatGravity renders an SG value the way brewers read them.
func formatGravity(g float64) string {
	return fmt.Sprintf("%.4f", g)
}

// formatOptionalTemp renders a temperature with its unit, or a dash.
func formatOptionalTemp(temp *float64, unit model.TempUnit) string {
	if temp == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f°%s", *temp, unit)
}
