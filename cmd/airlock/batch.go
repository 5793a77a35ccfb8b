package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/workflow"
	"github.com/spf13/cobra"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Manage fermentation batches",
		Long:  `Create batches, inspect them, and move them through their phase protocol.`,
	}

	cmd.AddCommand(createBatchCmd())
	cmd.AddCommand(listBatchesCmd())
	cmd.AddCommand(showBatchCmd())
	cmd.AddCommand(advanceBatchCmd())
	cmd.AddCommand(skipPhaseCmd())

	return cmd
}

func createBatchCmd() *cobra.Command {
	var (
		style      string
		timezone   string
		og         float64
		fg         float64
		noProtocol bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new batch",
		Long: `Create a batch and start it on the default three-phase protocol
(primary fermentation, secondary, aging). Use --no-protocol to create the
batch in planning state with no phases.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batch := model.Batch{
				Name:     args[0],
				Style:    model.BatchStyle(style),
				Status:   model.BatchPlanning,
				Timezone: timezone,
			}
			if og > 0 {
				batch.OriginalGravity = &og
			}
			if fg > 0 {
				batch.ExpectedFinalGravity = &fg
			}
			if err := batch.Validate(); err != nil {
				return err
			}

			id, err := store.CreateBatch(ctx, &batch)
			if err != nil {
				return fmt.Errorf("failed to create batch: %w", err)
			}
			batch.ID = id

			if noProtocol {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created batch %q (id %d) in planning", batch.Name, id)))
				return nil
			}

			if err := store.CreatePhases(ctx, id, defaultProtocol(fg)); err != nil {
				return fmt.Errorf("failed to create phases: %w", err)
			}
			first, err := workflow.ActivateFirstPhase(ctx, store, &batch, time.Now())
			if err != nil {
				return fmt.Errorf("failed to start protocol: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created batch %q (id %d), phase %q active", batch.Name, id, first.Name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&style, "style", "wine", "batch style (wine, beer, mead, cider, other)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone for day boundaries (default UTC)")
	cmd.Flags().Float64Var(&og, "og", 0, "original gravity, e.g. 1.085")
	cmd.Flags().Float64Var(&fg, "fg", 0, "expected final gravity, e.g. 0.996")
	cmd.Flags().BoolVar(&noProtocol, "no-protocol", false, "create without the default phase protocol")

	return cmd
}

// defaultProtocol is the standard three-phase plan. Primary completes on
// stable gravity near the expected final; secondary and aging are time-boxed
// with manual sign-off on aging.
func defaultProtocol(expectedFinal float64) []model.Phase {
	target := expectedFinal
	if target <= 0 {
		target = 0.995
	}

	return []model.Phase{
		{
			Name:      "primary",
			SortOrder: 1,
			Status:    model.PhasePending,
			Criteria: model.Compound{Criteria: []model.CompletionCriteria{
				model.GravityStable{ConsecutiveReadings: 3, ToleranceSG: 0.002},
				model.GravityReached{TargetGravity: &target},
			}},
		},
		{
			Name:      "secondary",
			SortOrder: 2,
			Status:    model.PhasePending,
			Criteria:  model.Duration{MinDays: 14},
		},
		{
			Name:      "aging",
			SortOrder: 3,
			Status:    model.PhasePending,
			Criteria:  model.Manual{},
		},
	}
}

func listBatchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all batches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batches, err := store.ListBatches(ctx)
			if err != nil {
				return fmt.Errorf("failed to list batches: %w", err)
			}
			if len(batches) == 0 {
				fmt.Println(cli.FormatInfo("No batches yet. Use 'airlock batch create' to start one."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.BoldStyle.Render("ID"),
				cli.BoldStyle.Render("Name"),
				cli.BoldStyle.Render("Style"),
				cli.BoldStyle.Render("Status"),
				cli.BoldStyle.Render("Started"))
			for _, b := range batches {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					b.ID, b.Name, b.Style, b.Status,
					b.CreatedAt.Local().Format("Jan 2 2006"))
			}
			return nil
		},
	}
}

func showBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch>",
		Short: "Show a batch and its phase protocol",
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
			phases, err := store.GetPhases(ctx, batch.ID)
			if err != nil {
				return fmt.Errorf("failed to load phases: %w", err)
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "Style: %s   Status: %s\n", batch.Style, batch.Status)
			if batch.OriginalGravity != nil {
				fmt.Fprintf(&sb, "OG: %s", formatGravity(*batch.OriginalGravity))
				if batch.ExpectedFinalGravity != nil {
					fmt.Fprintf(&sb, "   Expected FG: %s", formatGravity(*batch.ExpectedFinalGravity))
				}
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "Created: %s\n\n", batch.CreatedAt.Local().Format("Jan 2 2006 15:04"))

			for _, p := range phases {
				marker := " "
				if p.Status == model.PhaseActive {
					marker = "▶"
				}
				fmt.Fprintf(&sb, "%s %d. %-12s %s", marker, p.SortOrder, p.Name, p.Status)
				if p.StartedAt != nil {
					fmt.Fprintf(&sb, "  (started %s)", p.StartedAt.Local().Format("Jan 2"))
				}
				sb.WriteString("\n")
			}

			fmt.Println(cli.RenderBox(batch.Name, strings.TrimRight(sb.String(), "\n")))
			return nil
		},
	}
}

func advanceBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <batch>",
		Short: "Complete the active phase and start the next",
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

			next, err := workflow.AdvancePhase(ctx, store, batch, time.Now())
			if err != nil {
				return err
			}
			if next == nil {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Batch %q finished its protocol 🎉", batch.Name)))
				return nil
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Advanced to phase %q", next.Name)))
			return nil
		},
	}
}

func skipPhaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip-phase <batch>",
		Short: "Skip the active phase without completing it",
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

			next, err := workflow.SkipPhase(ctx, store, batch, time.Now())
			if err != nil {
				return err
			}
			if next == nil {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Batch %q finished its protocol", batch.Name)))
				return nil
			}
			fmt.Println(cli.FormatWarning(fmt.Sprintf("Skipped ahead to phase %q", next.Name)))
			return nil
		},
	}
}
