package main

import (
	"fmt"
	"os"

	"github.com/hbenedict/airlock/internal/analysis"
	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/workflow"
	"github.com/spf13/cobra"
)

func cleanupCmd() *cobra.Command {
	var (
		window    int
		threshold float64
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup <batch>",
		Short: "Review and exclude outlier readings",
		Long: `Scan a batch's readings for sensor artifacts: settling transients at
the start and end of the series and mid-run spikes. Each suggestion is
confirmed interactively before anything changes. Exclusions are reversible;
readings are never deleted. Recaps for affected dates are rebuilt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			interrupts := cli.NewInterruptHandler(os.Stdout)
			ctx = interrupts.HandleInterrupts(ctx)

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			batch, err := resolveBatch(ctx, store, args[0])
			if err != nil {
				return err
			}

			opts := analysis.OutlierOptions{
				RollingWindow:   window,
				MidRunThreshold: threshold,
			}
			result, err := workflow.ReviewOutliers(ctx, store, *batch, opts)
			if err != nil {
				return err
			}

			flags := result.HeadOutliers
			flags = append(flags, result.TailOutliers...)
			flags = append(flags, result.MidLogOutliers...)

			if !yes {
				prompter := cli.NewPrompter(os.Stdin, os.Stdout)
				flags, err = prompter.ReviewOutliers(ctx, result)
				if err != nil {
					return err
				}
			} else if result.TotalFlagged == 0 {
				fmt.Println(cli.FormatInfo("No outliers detected. Readings look clean."))
				return nil
			}

			if len(flags) == 0 {
				fmt.Println(cli.FormatInfo("No exclusions applied."))
				return nil
			}

			if err := workflow.ApplyExclusions(ctx, store, *batch, flags); err != nil {
				return fmt.Errorf("failed to apply exclusions: %w", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Excluded %d readings; affected recaps will regenerate.", len(flags))))
			return nil
		},
	}

	cmd.Flags().IntVar(&window, "window", 0, "rolling window size for mid-run detection (default 7)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "mid-run deviation threshold in SG (default 0.010)")
	cmd.Flags().BoolVar(&yes, "yes", false, "apply all suggestions without prompting")

	return cmd
}
