// Package orchestrator fans a grid of backtest trials out over a worker
// pool. Each trial is an isolated engine run; trials share nothing but
// the immutable candle series, so they parallelize freely while every
// individual run stays deterministic.
package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"backtest-lab/internal/candle"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/engine"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/strategy"
)

// Trial is one configuration to evaluate.
type Trial struct {
	Name     string
	Config   domain.RunConfig
	Bindings strategy.Bindings
}

// TrialResult pairs a trial with its outcome. Exactly one of Result and
// Err is set.
type TrialResult struct {
	Name   string
	RunID  string
	Result *domain.RunResult
	Err    error
}

// Orchestrator executes trial grids.
type Orchestrator struct {
	series      map[string]*candle.Series
	log         zerolog.Logger
	concurrency int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithConcurrency bounds the number of trials running at once. Default 4.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// New creates an orchestrator over a fixed set of candle series.
func New(series map[string]*candle.Series, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		series:      series,
		log:         zerolog.Nop(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunAll executes every trial and returns results in trial order,
// regardless of completion order. A failed trial records its error in its
// slot; only context cancellation aborts the whole grid.
func (o *Orchestrator) RunAll(ctx context.Context, trials []Trial) ([]TrialResult, error) {
	results := make([]TrialResult, len(trials))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, trial := range trials {
		g.Go(func() error {
			results[i] = o.runTrial(gctx, trial)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) runTrial(ctx context.Context, trial Trial) TrialResult {
	started := time.Now()
	res := TrialResult{Name: trial.Name}

	eng, err := engine.New(trial.Config, o.series, trial.Bindings,
		engine.WithLogger(o.log.With().Str("trial", trial.Name).Logger()))
	if err != nil {
		res.Err = err
		observability.RecordTrial("invalid", time.Since(started).Seconds())
		o.log.Error().Str("trial", trial.Name).Err(err).Msg("trial configuration rejected")
		return res
	}
	res.RunID = eng.RunID()

	result, err := eng.Run(ctx)
	if err != nil {
		res.Err = err
		observability.RecordTrial("failed", time.Since(started).Seconds())
		o.log.Error().Str("trial", trial.Name).Err(err).Msg("trial failed")
		return res
	}

	res.Result = result
	observability.RecordTrial("completed", time.Since(started).Seconds())
	o.log.Info().
		Str("trial", trial.Name).
		Str("run_id", result.RunID).
		Float64("final_balance", result.FinalBalance).
		Msg("trial completed")
	return res
}

// Best returns the completed trial maximizing score, or nil if no trial
// completed. Ties keep the earlier trial, so grid order breaks them
// deterministically.
func Best(results []TrialResult, score func(*domain.Metrics) float64) *TrialResult {
	var best *TrialResult
	var bestScore float64
	for i := range results {
		r := &results[i]
		if r.Result == nil || r.Result.Metrics == nil {
			continue
		}
		s := score(r.Result.Metrics)
		if best == nil || s > bestScore {
			best = r
			bestScore = s
		}
	}
	return best
}
