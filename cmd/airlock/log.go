package main

import (
	"fmt"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/spf13/cobra"
)

func logCmd() *cobra.Command {
	var (
		at   string
		note string
	)

	cmd := &cobra.Command{
		Use:   "log <batch> <action>",
		Short: "Log a batch event",
		Long: `Record an action taken on a batch: a racking, a stir, a nutrient
addition, or anything else worth remembering. Events show on the timeline and
count toward action-based phase criteria.

Examples:
  airlock log pinot racking
  airlock log pinot stir --note "vigorous, lots of CO2" --at "2026-08-30 09:00"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			occurredAt, err := parseWhen(at)
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

			event := model.BatchEvent{
				BatchID:    batch.ID,
				Name:       args[1],
				Note:       note,
				OccurredAt: occurredAt,
			}
			if err := event.Validate(); err != nil {
				return err
			}

			if _, err := store.SaveEvent(ctx, &event); err != nil {
				return fmt.Errorf("failed to save event: %w", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Logged %q for %q", event.Name, batch.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "event time (default now)")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")

	return cmd
}
