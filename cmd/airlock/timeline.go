package main

import (
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/model"
	"github.com/hbenedict/airlock/internal/workflow"
	"github.com/spf13/cobra"
)

func timelineCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "timeline <batch>",
		Short: "Show the batch history, newest first",
		Long: `Display the batch timeline: today's readings verbatim, older
same-day readings consolidated into hourly buckets, prior days compressed into
daily recaps, and every logged event in between. Missing recaps are generated
on the way.`,
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

			entries, err := workflow.LoadTimeline(ctx, store, *batch, time.Now())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println(cli.FormatInfo("Nothing recorded yet."))
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			fmt.Println(cli.FormatTitle(batch.Name))
			for _, entry := range entries {
				fmt.Println(renderTimelineEntry(entry))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many entries (0 = all)")

	return cmd
}

func renderTimelineEntry(entry model.TimelineEntry) string {
	switch e := entry.(type) {
	case model.ReadingEntry:
		r := e.Reading
		line := fmt.Sprintf("%s  %s", r.RecordedAt.Local().Format("Jan 2 15:04"), formatGravity(r.Gravity))
		if r.Temperature != nil {
			line += "  " + formatOptionalTemp(r.Temperature, r.TempUnit)
		}
		return line
	case model.HourlyEntry:
		s := e.Summary
		line := fmt.Sprintf("%s  %s  %s → %s (%d readings)",
			s.HourStart.Format("Jan 2"), s.Label,
			formatGravity(s.StartGravity), formatGravity(s.EndGravity), s.ReadingCount)
		if s.AvgTemperature != nil {
			line += "  avg " + formatOptionalTemp(s.AvgTemperature, s.TempUnit)
		}
		return cli.SubtleStyle.Render(line)
	case model.RecapEntry:
		r := e.Recap
		line := fmt.Sprintf("%s  day %d: %s → %s (Δ %s, %d readings)",
			r.Date, r.DayNumber,
			formatGravity(r.OpeningGravity), formatGravity(r.ClosingGravity),
			formatGravity(r.GravityDelta), r.ReadingCount)
		if r.AvgTemperature != nil {
			line += fmt.Sprintf("  %s avg", formatOptionalTemp(r.AvgTemperature, r.TempUnit))
		}
		return cli.InfoStyle.Render(line)
	case model.EventEntry:
		ev := e.Event
		line := fmt.Sprintf("%s  ⚙ %s", ev.OccurredAt.Local().Format("Jan 2 15:04"), ev.Name)
		if ev.Note != "" {
			line += "  " + cli.SubtleStyle.Render(ev.Note)
		}
		return line
	default:
		return fmt.Sprintf("%s  (unknown entry)", entry.EntryTime().Local().Format("Jan 2 15:04"))
	}
}
