package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ricefarm/internal/answer"
	"ricefarm/internal/components/chrono"
	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/config"
	"ricefarm/internal/farm"
	"ricefarm/internal/history"
	"ricefarm/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	farmUsername string
	farmPassword string
	farmTotal    int
	farmWorkers  int
)

func init() {
	flags := farmCmd.Flags()
	flags.StringVarP(&farmUsername, "username", "u", "", "Freerice username.")
	flags.StringVarP(&farmPassword, "password", "p", "", "Freerice password.")
	flags.IntVarP(&farmTotal, "num-requests", "n", config.DefaultTotal, "Total rounds to answer, split evenly across workers.")
	flags.IntVarP(&farmWorkers, "threads", "t", config.DefaultWorkers, "Number of concurrent workers.")
	rootCmd.AddCommand(farmCmd)
}

var farmCmd = &cobra.Command{
	Use:   "farm [-u <username>] [-p <password>] [-n <rounds>] [-t <workers>]",
	Short: "Answers rounds with concurrent workers and prints the final statistics.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		applyCredentials(cmd, &cfg, farmUsername, farmPassword)
		if cmd.Flags().Changed("num-requests") {
			cfg.Total = farmTotal
		}
		if cmd.Flags().Changed("threads") {
			cfg.Workers = farmWorkers
		}
		total := cfg.TotalOrDefault()
		workers := cfg.WorkersOrDefault()

		tel := telemetry.SlogAPI{}
		clock := chrono.NewStandardImpl()
		pool := farm.NewPool(
			newAuthClient(cfg, tel),
			answer.NewEngine(tel),
			clock,
			cfg.FarmOptions(),
			tel,
		)

		store, recording := openHistory(cfg)
		var runID int64
		if recording {
			defer store.Close()
			var err error
			runID, err = store.StartRun(cmd.Context(), history.Run{
				Kind:      history.KindFarm,
				Username:  cfg.Username,
				StartedAt: clock.Now(),
				Workers:   workers,
				Requested: total,
			})
			if err != nil {
				serviceutil.Fatal("failed to record run", err)
			}
		}

		slog.Info(
			"starting farm",
			"total", total,
			"workers", workers,
			"per_worker", farm.Split(total, workers),
		)
		result, runErr := pool.Run(cmd.Context(), cfg.Credentials(), total, workers)

		if recording {
			// the command context may already be cancelled
			err := store.FinishRun(context.Background(), runID, clock.Now(), result.Successes, result.Failures)
			if err != nil {
				slog.Warn("failed to record run result", "err", err)
			}
		}

		renderFarmResult(result)

		if runErr != nil {
			loggedIn := 0
			for _, w := range result.Workers {
				if w.Err == nil {
					loggedIn++
				}
			}
			if loggedIn == 0 {
				serviceutil.Fatal("no worker could log in", runErr)
			}
			slog.Warn("some workers could not log in", "err", runErr)
		}
	},
}

func renderFarmResult(result farm.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Worker", "Rounds", "Successes", "Failures", "Error"})

	for _, w := range result.Workers {
		errText := ""
		if w.Err != nil {
			errText = w.Err.Error()
		}
		t.AppendRow(table.Row{w.ID, w.Rounds, w.Successes, w.Failures, errText})
	}

	rate := result.Throughput()
	t.AppendFooter(table.Row{"Total", "", result.Successes, result.Failures, ""})
	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Printf(
		"Completed in %s: %.2f/s, %.2f/min, %.2f/h\n",
		result.Elapsed.Round(time.Millisecond),
		rate.PerSecond,
		rate.PerMinute,
		rate.PerHour,
	)
}
