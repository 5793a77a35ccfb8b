package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/importer"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import readings from files",
	}

	cmd.AddCommand(importCSVCmd())

	return cmd
}

func importCSVCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "csv <batch> <file>",
		Short: "Import readings from a CSV export",
		Long: `Import hydrometer readings from a CSV file. The header row maps
columns; time and gravity are required, temperature and unit optional.
Duplicate readings are skipped by hash, so re-importing the same export is
safe. Bad rows are reported and skipped.

Examples:
  airlock import csv pinot ~/Downloads/tilt_export.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batch, err := resolveBatch(ctx, store, args[0])
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[1], err)
			}
			defer f.Close()

			result, err := importer.New(store).Import(ctx, *batch, f, !quiet)
			if err != nil {
				return err
			}

			for _, rowErr := range result.RowErrors {
				slog.Warn("skipped row", "error", rowErr)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Imported %d readings (%d duplicates skipped, %d bad rows)",
				result.Inserted, result.Skipped, len(result.RowErrors))))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress the progress bar")

	return cmd
}
