package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/workflow"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <batch>",
		Short: "Show phase readiness and due actions",
		Long: `Evaluate the batch's active phase against its completion criteria and
action schedule: latest reading, whether the phase can advance and why, and
which scheduled actions are overdue or coming up.`,
		Args: cobra.ExactArgs(1),
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

			report, err := workflow.PhaseStatus(ctx, store, *batch, time.Now())
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderBox(batch.Name, renderStatus(report)))
			return nil
		},
	}
}

func renderStatus(report *workflow.StatusReport) string {
	var sb strings.Builder

	if report.Phase != nil {
		fmt.Fprintf(&sb, "Phase: %s (day %d)\n", report.Phase.Name, report.Eval.DaysInPhase+1)
	} else {
		sb.WriteString("Phase: none active\n")
	}

	if r := report.LatestReading; r != nil {
		fmt.Fprintf(&sb, "Latest reading: %s at %s", formatGravity(r.Gravity),
			r.RecordedAt.Local().Format("Jan 2 15:04"))
		if r.Temperature != nil {
			fmt.Fprintf(&sb, "  %s", formatOptionalTemp(r.Temperature, r.TempUnit))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("Latest reading: none\n")
	}

	sb.WriteString("\n")
	if report.Eval.CriteriaMet {
		sb.WriteString(cli.FormatSuccess("Ready to advance: " + report.Eval.CriteriaDetails))
	} else {
		sb.WriteString(cli.FormatInfo("Not ready: " + report.Eval.CriteriaDetails))
	}
	sb.WriteString("\n")

	if len(report.Eval.OverdueActions) > 0 {
		sb.WriteString("\nOverdue:\n")
		for _, a := range report.Eval.OverdueActions {
			fmt.Fprintf(&sb, "  %s %s\n", cli.ErrorStyle.Render("!"), describeAction(a))
		}
	}
	if len(report.Eval.NextActions) > 0 {
		sb.WriteString("\nUp next:\n")
		for _, a := range report.Eval.NextActions {
			fmt.Fprintf(&sb, "  - %s\n", describeAction(a))
		}
	}

	for _, alert := range report.OpenAlerts {
		sb.WriteString("\n" + cli.FormatWarning(alert.Message))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func describeAction(a model.PhaseAction) string {
	if a.GravityTriggered() {
		if a.TriggerGravity != nil {
			return fmt.Sprintf("%s (when gravity reaches %s)", a.Name, formatGravity(*a.TriggerGravity))
		}
		return fmt.Sprintf("%s (when attenuation reaches %.0f%%)", a.Name, *a.TriggerAttenuation*100)
	}
	if due := a.EffectiveDueAt(); due != nil {
		return fmt.Sprintf("%s (due %s)", a.Name, due.Local().Format("Jan 2"))
	}
	return a.Name
}
