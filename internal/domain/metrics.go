package domain

// Metrics holds summary statistics computed from the trade log and equity
// curve of one run. Every field is well-defined for an empty trade log:
// counts and sums are zero, ratios degrade to zero, never NaN.
type Metrics struct {
	StartingBalance float64
	FinalBalance    float64
	NetProfit       float64
	NetProfitPct    float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	AverageWin   float64
	AverageLoss  float64 // reported as a positive magnitude
	ProfitFactor float64 // gross wins / gross losses
	TotalFees    float64

	MaxDrawdown    float64 // worst peak-to-trough fraction of the equity curve
	SharpeRatio    float64
	SortinoRatio   float64
	CalmarRatio    float64
	OmegaRatio     float64
	AnnualReturn   float64
	LongestFlatMs  int64 // longest stretch between equity highs
	AvgHoldingMs   int64
	MaxConsecutive struct {
		Wins   int
		Losses int
	}
}
