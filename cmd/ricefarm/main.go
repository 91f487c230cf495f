package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ricefarm/cmd/ricefarm/commands"
	"ricefarm/internal/components/telemetry"
	"ricefarm/lib/util/serviceutil"
)

func main() {
	telemetry.InitSlog(false)
	ctx := serviceutil.SignalContext()

	otelSetup, err := telemetry.SetupFromEnv(ctx, "ricefarm")
	if err == nil {
		telemetry.InstrumentPerfStats(ctx, 15*time.Second)
	} else if !os.IsNotExist(err) {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	err = commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	otelSetup.Shutdown(shutdownCtx)

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
