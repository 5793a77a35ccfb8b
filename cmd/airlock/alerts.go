package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/spf13/cobra"
)

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Review and resolve batch alerts",
	}

	cmd.AddCommand(listAlertsCmd())
	cmd.AddCommand(resolveAlertCmd())

	return cmd
}

func listAlertsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list <batch>",
		Short: "List alerts for a batch",
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

			alerts, err := store.ListAlerts(ctx, batch.ID, !all)
			if err != nil {
				return err
			}
			if len(alerts) == 0 {
				fmt.Println(cli.FormatInfo("No alerts. Fermentation looks healthy."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cli.BoldStyle.Render("ID"),
				cli.BoldStyle.Render("Raised"),
				cli.BoldStyle.Render("Type"),
				cli.BoldStyle.Render("Status"),
				cli.BoldStyle.Render("Message"))
			for _, a := range alerts {
				status := "open"
				if a.Resolved() {
					status = "resolved"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					a.ID, a.CreatedAt.Local().Format("Jan 2 15:04"),
					a.Type, status, a.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include resolved alerts")

	return cmd
}

func resolveAlertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Mark an alert resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			alertID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid alert id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.ResolveAlert(ctx, alertID); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Resolved alert %d", alertID)))
			return nil
		},
	}
}
