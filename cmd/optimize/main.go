package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"backtest-lab/internal/candle"
	"backtest-lab/internal/config"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/orchestrator"
	"backtest-lab/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to run config YAML (required)")
	logLevel := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	binding := flag.String("binding", "", "Strategy binding name to sweep (required)")
	fastList := flag.String("fast", "", "Comma-separated fast periods (SMA_CROSS)")
	slowList := flag.String("slow", "", "Comma-separated slow periods (SMA_CROSS)")
	lookbackList := flag.String("lookback", "", "Comma-separated lookbacks (BREAKOUT)")
	objective := flag.String("objective", "net_profit", "Objective: net_profit, sharpe, calmar, win_rate")
	concurrency := flag.Int("concurrency", 4, "Trials running at once")
	flag.Parse()

	log := logging.New(*logLevel)

	if *configPath == "" {
		log.Fatal().Msg("--config is required")
	}
	if *binding == "" {
		log.Fatal().Msg("--binding is required")
	}
	score, ok := objectives[*objective]
	if !ok {
		log.Fatal().Str("objective", *objective).Msg("unknown objective")
	}

	file, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	base := file.Bindings()
	if _, ok := base[*binding]; !ok {
		log.Fatal().Str("binding", *binding).Msg("config does not define this binding")
	}

	trials, err := buildGrid(file, *binding, *fastList, *slowList, *lookbackList)
	if err != nil {
		log.Fatal().Err(err).Msg("build trial grid")
	}
	if len(trials) == 0 {
		log.Fatal().Msg("sweep flags produced no trials")
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

	o := orchestrator.New(series,
		orchestrator.WithLogger(log),
		orchestrator.WithConcurrency(*concurrency))

	log.Info().Int("trials", len(trials)).Int("concurrency", *concurrency).Msg("starting grid")
	results, err := o.RunAll(ctx, trials)
	if err != nil {
		log.Fatal().Err(err).Msg("grid aborted")
	}

	printGrid(results, score)

	best := orchestrator.Best(results, score)
	if best == nil {
		log.Fatal().Msg("no trial completed")
	}
	fmt.Printf("\nbest: %s (run %s, %s=%.6f)\n",
		best.Name, best.RunID, *objective, score(best.Result.Metrics))
}

var objectives = map[string]func(*domain.Metrics) float64{
	"net_profit": func(m *domain.Metrics) float64 { return m.NetProfit },
	"sharpe":     func(m *domain.Metrics) float64 { return m.SharpeRatio },
	"calmar":     func(m *domain.Metrics) float64 { return m.CalmarRatio },
	"win_rate":   func(m *domain.Metrics) float64 { return m.WinRate },
}

// buildGrid produces one trial per parameter combination, overriding the
// swept binding and leaving everything else in the config untouched.
func buildGrid(file *config.File, binding, fastList, slowList, lookbackList string) ([]orchestrator.Trial, error) {
	base := file.Bindings()
	cfg := base[binding]

	var trials []orchestrator.Trial
	add := func(name string, override strategy.Config) {
		bindings := make(strategy.Bindings, len(base))
		for k, v := range base {
			bindings[k] = v
		}
		bindings[binding] = override
		trials = append(trials, orchestrator.Trial{
			Name:     name,
			Config:   file.RunConfig(),
			Bindings: bindings,
		})
	}

	switch cfg.Type {
	case strategy.TypeSMACross:
		fasts, err := parseIntList(fastList)
		if err != nil {
			return nil, fmt.Errorf("--fast: %w", err)
		}
		slows, err := parseIntList(slowList)
		if err != nil {
			return nil, fmt.Errorf("--slow: %w", err)
		}
		for _, f := range fasts {
			for _, s := range slows {
				if f >= s {
					continue
				}
				override := cfg
				override.FastPeriod = &f
				override.SlowPeriod = &s
				add(fmt.Sprintf("%s_f%d_s%d", binding, f, s), override)
			}
		}
	case strategy.TypeBreakout:
		lookbacks, err := parseIntList(lookbackList)
		if err != nil {
			return nil, fmt.Errorf("--lookback: %w", err)
		}
		for _, n := range lookbacks {
			override := cfg
			override.Lookback = &n
			add(fmt.Sprintf("%s_n%d", binding, n), override)
		}
	default:
		return nil, fmt.Errorf("binding %q has unsweepable type %q", binding, cfg.Type)
	}
	return trials, nil
}

func parseIntList(raw string) ([]int, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty list")
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func printGrid(results []orchestrator.TrialResult, score func(*domain.Metrics) float64) {
	fmt.Printf("%-28s %-18s %12s %10s %10s %10s\n",
		"trial", "run_id", "score", "trades", "win_rate", "max_dd")
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%-28s %-18s failed: %v\n", r.Name, r.RunID, r.Err)
			continue
		}
		m := r.Result.Metrics
		fmt.Printf("%-28s %-18s %12.4f %10d %9.1f%% %9.2f%%\n",
			r.Name, r.RunID, score(m), m.TotalTrades, m.WinRate*100, m.MaxDrawdown*100)
	}
}
