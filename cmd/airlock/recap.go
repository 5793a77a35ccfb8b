package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/recap"
	"github.com/spf13/cobra"
)

func recapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recap",
		Short: "Manage daily recaps",
		Long: `Daily recaps compress each past day's readings into one durable summary.
They are generated lazily whenever the timeline is read; these commands force
or inspect that process.`,
	}

	cmd.AddCommand(generateRecapsCmd())
	cmd.AddCommand(listRecapsCmd())

	return cmd
}

func generateRecapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <batch>",
		Short: "Generate recaps for any unrecapped past days",
		Args:  cobra.ExactArgs(1),
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

			created, err := recap.NewGenerator(store).GenerateMissing(ctx, *batch, time.Now())
			if err != nil {
				return err
			}
			if created == 0 {
				fmt.Println(cli.FormatInfo("All past days already recapped."))
				return nil
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Generated %d recaps", created)))
			return nil
		},
	}
}

func listRecapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <batch>",
		Short: "List daily recaps",
		Args:  cobra.ExactArgs(1),
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

			recaps, err := store.GetRecaps(ctx, batch.ID)
			if err != nil {
				return err
			}
			if len(recaps) == 0 {
				fmt.Println(cli.FormatInfo("No recaps yet."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				cli.BoldStyle.Render("Date"),
				cli.BoldStyle.Render("Day"),
				cli.BoldStyle.Render("Opening"),
				cli.BoldStyle.Render("Closing"),
				cli.BoldStyle.Render("Δ"),
				cli.BoldStyle.Render("Readings"))
			for _, r := range recaps {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\n",
					r.Date, r.DayNumber,
					formatGravity(r.OpeningGravity), formatGravity(r.ClosingGravity),
					formatGravity(r.GravityDelta), r.ReadingCount)
			}
			return nil
		},
	}
}
