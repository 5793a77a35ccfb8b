package main

import (
	"fmt"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/workflow"
	"github.com/spf13/cobra"
)

func readingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reading",
		Short: "Record gravity readings",
	}

	cmd.AddCommand(addReadingCmd())

	return cmd
}

func addReadingCmd() *cobra.Command {
	var (
		at       string
		tempUnit string
		temp     float64
		hasTemp  bool
	)

	cmd := &cobra.Command{
		Use:   "add <batch> <gravity>",
		Short: "Record a manual gravity reading",
		Long: `Record a hydrometer reading for a batch. Duplicate readings (same batch,
time, gravity, and source) are silently skipped. New readings are scanned for
anomalies; any alerts raised are printed.

Examples:
  airlock reading add pinot 1.042
  airlock reading add pinot 1.042 --temp 68 --at "2026-08-30 18:00"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			gravity, err := parseGravityArg(args[1])
			if err != nil {
				return err
			}
			recordedAt, err := parseWhen(at)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batch, err := resolveBatch(ctx, store, args[0])
			if err != nil {
				return err
			}

			reading := model.Reading{
				BatchID:    batch.ID,
				RecordedAt: recordedAt,
				Gravity:    gravity,
				Source:     "manual",
			}
			if hasTemp {
				reading.Temperature = &temp
				reading.TempUnit = model.TempUnit(tempUnit)
			}
			if err := reading.Validate(); err != nil {
				return err
			}

			ingester := workflow.NewIngester(store)
			inserted, alerts, err := ingester.RecordReading(ctx, *batch, reading)
			if err != nil {
				return err
			}
			if !inserted {
				fmt.Println(cli.FormatInfo("Duplicate reading; nothing recorded."))
				return nil
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded %s for %q", formatGravity(gravity), batch.Name)))
			for _, alert := range alerts {
				fmt.Println(cli.FormatWarning(alert.Message))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "reading time (default now)")
	cmd.Flags().Float64Var(&temp, "temp", 0, "temperature at reading time")
	cmd.Flags().StringVar(&tempUnit, "temp-unit", "F", "temperature unit (F or C)")
	cmd.PreRun = func(cmd *cobra.Command, _ []string) {
		hasTemp = cmd.Flags().Changed("temp")
	}

	return cmd
}
