package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/spf13/cobra"
)

func actionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Manage the active phase's action schedule",
		Long: `Phase actions are scheduled tasks attached to a phase: repeat every N
days, fall due on a date, or trigger when gravity drops past a threshold.
Overdue and upcoming actions show in 'airlock status'.`,
	}

	cmd.AddCommand(addActionCmd())
	cmd.AddCommand(doneActionCmd())

	return cmd
}

func addActionCmd() *cobra.Command {
	var (
		note         string
		due          string
		intervalDays int
		triggerSG    float64
	)

	cmd := &cobra.Command{
		Use:   "add <batch> <name>",
		Short: "Add an action to the batch's active phase",
		Long: `Add a scheduled action. Pick one scheduling mode: --every for a repeat
interval, --due for a fixed date, or --trigger-sg for a gravity trigger.

Examples:
  airlock action add pinot punch-down --every 1
  airlock action add pinot "add oak" --due 2026-09-15
  airlock action add pinot "rack off gross lees" --trigger-sg 1.010`,
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
			phase, err := store.GetActivePhase(ctx, batch.ID)
			if err != nil {
				if errors.Is(err, common.ErrNoActivePhase) {
					return fmt.Errorf("batch %q has no active phase to attach actions to", batch.Name)
				}
				return err
			}

			action := model.PhaseAction{
				PhaseID: phase.ID,
				Name:    args[1],
				Note:    note,
			}
			if intervalDays > 0 {
				action.IntervalDays = &intervalDays
			}
			if due != "" {
				dueAt, parseErr := parseWhen(due)
				if parseErr != nil {
					return parseErr
				}
				action.DueAt = &dueAt
			}
			if triggerSG > 0 {
				action.TriggerGravity = &triggerSG
			}
			if err := action.Validate(); err != nil {
				return err
			}

			id, err := store.CreateAction(ctx, &action)
			if err != nil {
				return fmt.Errorf("failed to create action: %w", err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added action %q (id %d) to phase %q", action.Name, id, phase.Name)))
			return nil
		},
	}

	cmd.Flags().IntVar(&intervalDays, "every", 0, "repeat every N days")
	cmd.Flags().StringVar(&due, "due", "", "fixed due date")
	cmd.Flags().Float64Var(&triggerSG, "trigger-sg", 0, "due when gravity drops to this value")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")

	return cmd
}

func doneActionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <action-id>",
		Short: "Mark an action completed",
		Long:  `Marking a repeating action completed restarts its interval from now.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			actionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid action id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.MarkActionCompleted(ctx, actionID, time.Now()); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Action %d completed", actionID)))
			return nil
		},
	}
}
