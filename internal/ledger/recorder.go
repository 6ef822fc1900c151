package ledger

import "backtest-lab/internal/domain"

// Recorder is the append-only closed-trade log for one run. Trades arrive
// already in deterministic order because the simulation clock drives all
// closes sequentially.
type Recorder struct {
	trades []*domain.ClosedTrade
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{trades: make([]*domain.ClosedTrade, 0)}
}

// Record appends one closed trade.
func (r *Recorder) Record(t *domain.ClosedTrade) {
	r.trades = append(r.trades, t)
}

// Trades returns the recorded trades in close order.
func (r *Recorder) Trades() []*domain.ClosedTrade {
	return r.trades
}

// Len returns the number of recorded trades.
func (r *Recorder) Len() int {
	return len(r.trades)
}
