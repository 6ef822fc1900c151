package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"backtest-lab/internal/candle"
	"backtest-lab/internal/config"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/engine"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/reporting"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to run config YAML (required)")
	logLevel := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	outputJSON := flag.Bool("json", false, "Print the run result as JSON instead of markdown")
	reportDir := flag.String("report-dir", "", "Directory to write report.md, trades.csv and equity.csv")
	persist := flag.Bool("persist", false, "Persist the run to the configured storage DSNs")
	metricsAddr := flag.String("metrics-addr", "", "Address to serve Prometheus metrics on (e.g. :9100)")
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

	if *metricsAddr != "" {
		go func() {
			log.Info().Str("addr", *metricsAddr).Msg("serving metrics")
			if err := http.ListenAndServe(*metricsAddr, observability.Handler()); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	series, err := candle.LoadAll(file.Data.Dir, file.SeriesRefs())
	if err != nil {
		log.Fatal().Err(err).Msg("load candle series")
	}

	cfg := file.RunConfig()
	eng, err := engine.New(cfg, series, file.Bindings(), engine.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	log.Info().
		Str("run_id", eng.RunID()).
		Int("routes", len(cfg.Routes)).
		Msg("starting run")

	result, err := eng.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("run failed")
	}
	cfg.RunID = result.RunID

	if *persist {
		if err := persistRun(ctx, file, cfg, result); err != nil {
			log.Fatal().Err(err).Msg("persist run")
		}
		log.Info().Str("run_id", result.RunID).Msg("run persisted")
	}

	report := reporting.NewBuilder().Build(cfg, result)
	if *reportDir != "" {
		if err := writeReportFiles(*reportDir, report, result); err != nil {
			log.Fatal().Err(err).Msg("write report files")
		}
		log.Info().Str("dir", *reportDir).Msg("report written")
	}

	if *outputJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("encode result")
		}
		fmt.Println(string(out))
		return
	}
	fmt.Print(reporting.RenderMarkdown(report))
}

// persistRun writes the run to whichever sinks the config names. Postgres
// holds trades and the summary, ClickHouse the equity curve.
func persistRun(ctx context.Context, file *config.File, cfg domain.RunConfig, result *domain.RunResult) error {
	if file.Storage.PostgresDSN == "" && file.Storage.ClickhouseDSN == "" {
		return fmt.Errorf("--persist set but no storage DSNs configured")
	}

	if file.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, file.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		if err := pgstore.NewClosedTradeStore(pool).InsertBulk(ctx, result.RunID, result.ClosedTrades); err != nil {
			return fmt.Errorf("insert trades: %w", err)
		}
		summary := result.Summary(cfg)
		summary.CreatedAt = time.Now().UnixMilli()
		if err := pgstore.NewRunSummaryStore(pool).Insert(ctx, summary); err != nil {
			return fmt.Errorf("insert summary: %w", err)
		}
	}

	if file.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, file.Storage.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		defer conn.Close()

		if err := chstore.NewEquityCurveStore(conn).InsertBulk(ctx, result.RunID, result.EquityCurve); err != nil {
			return fmt.Errorf("insert equity curve: %w", err)
		}
	}
	return nil
}

func writeReportFiles(dir string, report *reporting.Report, result *domain.RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := map[string]string{
		"report.md":  reporting.RenderMarkdown(report),
		"trades.csv": reporting.RenderTradesCSV(result.ClosedTrades),
		"equity.csv": reporting.RenderEquityCSV(result.EquityCurve),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
