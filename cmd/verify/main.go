package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"backtest-lab/internal/candle"
	"backtest-lab/internal/config"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/engine"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to run config YAML (required)")
	logLevel := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flag.Parse()

	log := logging.New(*logLevel)

	if *configPath == "" {
		log.Fatal().Msg("--config is required")
	}

	file, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	series, err := candle.LoadAll(file.Data.Dir, file.SeriesRefs())
	if err != nil {
		log.Fatal().Err(err).Msg("load candle series")
	}

	// Each invocation builds a fresh engine so the two runs share no
	// mutable state.
	run := func(ctx context.Context) (*domain.RunResult, error) {
		eng, err := engine.New(file.RunConfig(), series, file.Bindings(), engine.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return eng.Run(ctx)
	}

	report, err := verification.Verify(ctx, run)
	if err != nil {
		log.Fatal().Err(err).Msg("verification run failed")
	}

	if report.Match {
		fmt.Printf("run %s verified: both executions match\n", report.RunID)
		return
	}

	fmt.Printf("run %s DIVERGED in %d field(s):\n", report.RunID, len(report.Divergences))
	for _, d := range report.Divergences {
		fmt.Printf("  %s\n", d)
	}
	os.Exit(1)
}
