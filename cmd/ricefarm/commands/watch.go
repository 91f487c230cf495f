package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ricefarm/internal/components/chrono"
	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/history"
	"ricefarm/internal/monitor"
	"ricefarm/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	watchUsername string
	watchPassword string
	watchInterval int
)

func init() {
	flags := watchCmd.Flags()
	flags.StringVarP(&watchUsername, "username", "u", "", "Freerice username.")
	flags.StringVarP(&watchPassword, "password", "p", "", "Freerice password.")
	flags.IntVarP(&watchInterval, "interval", "i", int(monitor.DefaultInterval/time.Second), "Seconds between telemetry reports.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [-u <username>] [-p <password>] [-i <seconds>]",
	Short: "Reports the rice an account gains and the effective request rate until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		applyCredentials(cmd, &cfg, watchUsername, watchPassword)
		if cmd.Flags().Changed("interval") {
			cfg.IntervalSeconds = watchInterval
		}

		tel := telemetry.SlogAPI{}
		clock := chrono.NewStandardImpl()
		reporter := monitor.NewReporter(newAuthClient(cfg, tel), clock, cfg.Interval(), tel)

		store, recording := openHistory(cfg)
		var runID int64
		var gained int64
		if recording {
			defer store.Close()
			var err error
			runID, err = store.StartRun(cmd.Context(), history.Run{
				Kind:      history.KindWatch,
				Username:  cfg.Username,
				StartedAt: clock.Now(),
			})
			if err != nil {
				serviceutil.Fatal("failed to record run", err)
			}

			reporter.SetSink(monitor.SinkFunc(func(ctx context.Context, report monitor.Report) error {
				gained = report.Gained
				total := report.Total
				if report.Failed {
					total = -1
				}
				return store.RecordSample(ctx, runID, history.Sample{
					Time:      report.Time,
					RiceTotal: total,
					Delta:     report.Delta,
					Gained:    report.Gained,
				})
			}))
		}

		err := reporter.Run(cmd.Context(), cfg.Credentials())
		if err != nil && !errors.Is(err, context.Canceled) {
			serviceutil.Fatal("telemetry failed", err)
		}

		if recording {
			err := store.FinishRun(context.Background(), runID, clock.Now(), gained/monitor.PointsPerRequest, 0)
			if err != nil {
				slog.Warn("failed to record run result", "err", err)
			}
		}
		slog.Info("telemetry stopped")
	},
}
