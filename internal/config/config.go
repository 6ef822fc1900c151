// Package config loads the YAML run configuration and converts it into
// the engine's input types. Validation happens at load time so a bad
// file never reaches the engine.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/strategy"
)

// File is the top-level YAML document.
type File struct {
	Run        RunSection              `yaml:"run" validate:"required"`
	Routes     []RouteSection          `yaml:"routes" validate:"required,min=1,dive"`
	DataRoutes []RouteSection          `yaml:"data_routes" validate:"dive"`
	Strategies map[string]StratSection `yaml:"strategies" validate:"required,min=1"`
	Data       DataSection             `yaml:"data"`
	Storage    StorageSection          `yaml:"storage"`
}

// RunSection holds the run window and execution model.
type RunSection struct {
	ID              string  `yaml:"id"`
	StartMs         int64   `yaml:"start_ms" validate:"gte=0"`
	EndMs           int64   `yaml:"end_ms" validate:"gte=0"`
	StartingBalance float64 `yaml:"starting_balance" validate:"required,gt=0"`
	FeeRate         float64 `yaml:"fee_rate" validate:"gte=0,lt=1"`
	SlippagePct     float64 `yaml:"slippage_pct" validate:"gte=0,lt=1"`
	Leverage        float64 `yaml:"leverage" validate:"gte=0"`
}

// RouteSection is one route entry. Strategy is required for trading
// routes and forbidden for data routes.
type RouteSection struct {
	Exchange  string `yaml:"exchange" validate:"required"`
	Symbol    string `yaml:"symbol" validate:"required"`
	Timeframe string `yaml:"timeframe" validate:"required"`
	Strategy  string `yaml:"strategy"`
}

// StratSection is one strategy binding.
type StratSection struct {
	Type          string   `yaml:"type" validate:"required"`
	FastPeriod    *int     `yaml:"fast_period"`
	SlowPeriod    *int     `yaml:"slow_period"`
	Lookback      *int     `yaml:"lookback"`
	StopLossPct   *float64 `yaml:"stop_loss_pct"`
	TakeProfitPct *float64 `yaml:"take_profit_pct"`
	BalancePct    *float64 `yaml:"balance_pct"`
}

// DataSection points at the candle CSV directory.
type DataSection struct {
	Dir string `yaml:"dir"`
}

// StorageSection holds optional persistence DSNs. Empty DSNs mean the
// corresponding sink is skipped.
type StorageSection struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Load reads, parses, and validates a config file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates config bytes.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	for i, r := range f.Routes {
		if _, err := domain.ParseTimeframe(r.Timeframe); err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		if r.Strategy == "" {
			return nil, fmt.Errorf("routes[%d]: trading route requires a strategy", i)
		}
		if _, ok := f.Strategies[r.Strategy]; !ok {
			return nil, fmt.Errorf("routes[%d]: unknown strategy binding %q", i, r.Strategy)
		}
	}
	for i, r := range f.DataRoutes {
		if _, err := domain.ParseTimeframe(r.Timeframe); err != nil {
			return nil, fmt.Errorf("data_routes[%d]: %w", i, err)
		}
		if r.Strategy != "" {
			return nil, fmt.Errorf("data_routes[%d]: data route must not name a strategy", i)
		}
	}
	return &f, nil
}

// RunConfig converts the file into the engine's run configuration.
func (f *File) RunConfig() domain.RunConfig {
	return domain.RunConfig{
		RunID:           f.Run.ID,
		Routes:          toRoutes(f.Routes),
		DataRoutes:      toRoutes(f.DataRoutes),
		StartMs:         f.Run.StartMs,
		EndMs:           f.Run.EndMs,
		StartingBalance: f.Run.StartingBalance,
		Execution: domain.ExecutionConfig{
			FeeRate:     f.Run.FeeRate,
			SlippagePct: f.Run.SlippagePct,
			Leverage:    f.Run.Leverage,
		},
	}
}

// SeriesRefs returns the distinct (exchange, symbol) pairs the routes
// reference, sorted by series key.
func (f *File) SeriesRefs() [][2]string {
	seen := make(map[string]struct{})
	var refs [][2]string
	add := func(s RouteSection) {
		key := s.Exchange + "-" + s.Symbol
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		refs = append(refs, [2]string{s.Exchange, s.Symbol})
	}
	for _, s := range f.Routes {
		add(s)
	}
	for _, s := range f.DataRoutes {
		add(s)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i][0]+"-"+refs[i][1] < refs[j][0]+"-"+refs[j][1]
	})
	return refs
}

// Bindings converts the strategies section.
func (f *File) Bindings() strategy.Bindings {
	bindings := make(strategy.Bindings, len(f.Strategies))
	for name, s := range f.Strategies {
		bindings[name] = strategy.Config{
			Type:          s.Type,
			FastPeriod:    s.FastPeriod,
			SlowPeriod:    s.SlowPeriod,
			Lookback:      s.Lookback,
			StopLossPct:   s.StopLossPct,
			TakeProfitPct: s.TakeProfitPct,
			BalancePct:    s.BalancePct,
		}
	}
	return bindings
}

func toRoutes(sections []RouteSection) []domain.Route {
	if len(sections) == 0 {
		return nil
	}
	routes := make([]domain.Route, 0, len(sections))
	for _, s := range sections {
		routes = append(routes, domain.Route{
			Exchange:  s.Exchange,
			Symbol:    s.Symbol,
			Timeframe: domain.Timeframe(s.Timeframe),
			Strategy:  s.Strategy,
		})
	}
	return routes
}
