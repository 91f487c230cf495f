package commands

import (
	"errors"
	"os"
	"time"

	"ricefarm/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "The maximum amount of runs to print.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--limit <n>]",
	Short: "Prints the most recent recorded runs.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		store, ok := openHistory(cfg)
		if !ok {
			serviceutil.Fatal("history is disabled", errors.New("pass --history or set history in the config"))
		}
		defer store.Close()

		runs, err := store.RecentRuns(cmd.Context(), historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to read history", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Kind", "User", "Started", "Duration", "Workers", "Requested", "Successes", "Failures"})

		for _, r := range runs {
			duration := "running"
			if !r.FinishedAt.IsZero() {
				duration = r.FinishedAt.Sub(r.StartedAt).String()
			}
			t.AppendRow(table.Row{
				r.ID,
				r.Kind,
				r.Username,
				r.StartedAt.Format(time.DateTime),
				duration,
				r.Workers,
				r.Requested,
				r.Successes,
				r.Failures,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
