package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hbenedict/airlock/internal/cli"
	"github.com/hbenedict/airlock/internal/common"
	"github.com/hbenedict/airlock/internal/device"
	"github.com/hbenedict/airlock/internal/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func pollCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "poll <batch>",
		Short: "Poll a networked hydrometer in the foreground",
		Long: `Poll a Tilt/iSpindel-style HTTP endpoint on an interval and record its
readings for the batch. Runs until interrupted. Endpoint and interval can also
come from config (device.url, device.interval).

Examples:
  airlock poll pinot --url http://tilt.local:1880/reading
  airlock poll pinot --interval 5m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if url == "" {
				url = viper.GetString("device.url")
			}
			if url == "" {
				return common.NewUserError("no device endpoint configured (use --url or device.url)", common.ErrMissingConfig)
			}
			if interval == 0 {
				interval = viper.GetDuration("device.interval")
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

			poller := device.NewPoller(workflow.NewIngester(store), *batch)
			go poller.Run(ctx)

			if err := poller.Start(ctx, device.Config{URL: url, Interval: interval}); err != nil {
				return err
			}
			fmt.Println(cli.FormatInfo(fmt.Sprintf("Polling %s for %q. Ctrl-C to stop.", url, batch.Name)))

			<-ctx.Done()

			// The supervisor sees the same cancellation and may already be
			// gone; a failed final status read is fine.
			status, statusErr := poller.Status(context.Background())
			if statusErr == nil {
				fmt.Println(cli.FormatInfo(fmt.Sprintf(
					"Stopped after %d polls, %d readings recorded", status.PollCount, status.InsertCount)))
				if status.LastError != "" {
					fmt.Println(cli.FormatWarning("Last poll error: " + status.LastError))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "device endpoint returning JSON readings")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default 15m)")

	return cmd
}
