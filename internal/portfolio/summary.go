package portfolio

import (
	"math"

	"ma-crossover-backtest/internal/strategy"
)

// Summary holds headline statistics for a simulated run.
type Summary struct {
	InitialCapital float64
	FinalValue     float64
	TotalReturn    float64
	Buys           int
	Sells          int
	OpenPosition   bool
	// MaxDrawdown is the largest peak-to-trough fall of TotalValue, as a
	// fraction of the peak.
	MaxDrawdown float64
}

// Summarize computes a Summary. Empty input yields a zero-valued summary that
// only carries the initial capital.
func Summarize(signals []strategy.SignalRow, rows []Row, p Params) Summary {
	sum := Summary{InitialCapital: p.InitialCapital, FinalValue: p.InitialCapital}
	for _, m := range strategy.Markers(signals) {
		if m.Side == strategy.SideBuy {
			sum.Buys++
		} else {
			sum.Sells++
		}
	}
	if len(signals) > 0 {
		sum.OpenPosition = signals[len(signals)-1].Signal == 1
	}
	if len(rows) == 0 {
		return sum
	}

	last := rows[len(rows)-1]
	sum.FinalValue = last.TotalValue
	sum.TotalReturn = last.CumulativeReturn - 1

	peak := math.Inf(-1)
	for _, r := range rows {
		if r.TotalValue > peak {
			peak = r.TotalValue
		}
		if peak > 0 {
			if dd := (peak - r.TotalValue) / peak; dd > sum.MaxDrawdown {
				sum.MaxDrawdown = dd
			}
		}
	}
	return sum
}
