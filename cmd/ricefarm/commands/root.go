package commands

import (
	"context"
	"log/slog"

	"ricefarm/internal/auth"
	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/config"
	"ricefarm/internal/freerice"
	"ricefarm/internal/history"
	"ricefarm/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	verbose     bool
	historyPath string
	dumpHTTP    string
)

var rootCmd = &cobra.Command{
	Use:           "ricefarm",
	Short:         "ricefarm answers Freerice multiplication rounds and tracks the rice they earn.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.DefaultPath, "The config file to read, a sibling .local file overrides it.")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug information, including every http request.")
	flags.StringVar(&historyPath, "history", "", "The sqlite database to record runs to.")
	flags.StringVar(&dumpHTTP, "dump-http", "", "A directory to write every http exchange to.")
}

func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the config file and applies the persistent flags over it.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("history") {
		cfg.History = historyPath
	}
	if flags.Changed("dump-http") {
		cfg.DumpHTTP = dumpHTTP
	}

	if cfg.Verbose {
		telemetry.InitSlog(true)
	}
	return cfg
}

// applyCredentials overrides the configured credentials with the -u and -p flags.
func applyCredentials(cmd *cobra.Command, cfg *config.Config, username, password string) {
	if cmd.Flags().Changed("username") {
		cfg.Username = username
	}
	if cmd.Flags().Changed("password") {
		cfg.Password = password
	}
	if cfg.Username == "" || cfg.Password == "" {
		serviceutil.Fatal("missing credentials", errMissingCredentials)
	}
}

func newAuthClient(cfg config.Config, tel telemetry.API) auth.Client {
	client := freerice.NewClient(cfg.FreericeOptions(), tel)
	if cfg.DumpHTTP != "" {
		output, err := telemetry.NewFilesystemOutput(cfg.DumpHTTP)
		if err != nil {
			serviceutil.Fatal("failed to create http dump directory", err)
		}
		client.SetInstrumentOutput(output)
	}
	return auth.NewClient(client, cfg.LoginPolicy(), tel)
}

// openHistory returns false when history is disabled.
func openHistory(cfg config.Config) (history.Store, bool) {
	if cfg.History == "" {
		return history.Store{}, false
	}
	store, err := history.Open(cfg.History)
	if err != nil {
		serviceutil.Fatal("failed to open history", err)
	}
	slog.Debug("recording history", "path", cfg.History)
	return store, true
}
