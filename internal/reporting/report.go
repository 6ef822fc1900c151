// Package reporting renders run results as CSV and Markdown artifacts.
// Rendering is pure formatting over a finished RunResult; apart from the
// injectable clock, identical results render to identical bytes.
package reporting

import (
	"time"

	"backtest-lab/internal/domain"
)

// Report is the renderable view of one run.
type Report struct {
	GeneratedAt time.Time

	RunID           string
	StartMs         int64
	EndMs           int64
	StartingBalance float64
	Routes          []domain.Route

	Metrics           *domain.Metrics
	Trades            []*domain.ClosedTrade
	TerminalPositions []domain.TerminalPosition
	FinalBalance      float64
	StepsSimulated    int
}

// Builder assembles reports from run outputs.
type Builder struct {
	now func() time.Time // injectable clock for deterministic output
}

// NewBuilder creates a report builder.
func NewBuilder() *Builder {
	return &Builder{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build produces the report for one run.
func (b *Builder) Build(cfg domain.RunConfig, result *domain.RunResult) *Report {
	return &Report{
		GeneratedAt:       b.now(),
		RunID:             result.RunID,
		StartMs:           cfg.StartMs,
		EndMs:             cfg.EndMs,
		StartingBalance:   cfg.StartingBalance,
		Routes:            cfg.Routes,
		Metrics:           result.Metrics,
		Trades:            result.ClosedTrades,
		TerminalPositions: result.TerminalPositions,
		FinalBalance:      result.FinalBalance,
		StepsSimulated:    result.StepsSimulated,
	}
}
