package portfolio

import (
	"math"
	"time"

	"ma-crossover-backtest/internal/strategy"
)

const (
	DefaultInitialCapital = 100000.0
	DefaultShares         = 1000
)

// Params configures the simulated account.
type Params struct {
	InitialCapital float64
	Shares         int
	// ScaleCashByShares multiplies each cash deduction by Shares so cash and
	// holdings are in the same units. Off by default: the classic formula
	// deducts a single unit of price per position change.
	ScaleCashByShares bool
}

// DefaultParams returns 100000 of capital trading 1000 shares.
func DefaultParams() Params {
	return Params{InitialCapital: DefaultInitialCapital, Shares: DefaultShares}
}

// Row is one row of the portfolio table.
type Row struct {
	Time          time.Time
	HoldingsValue float64
	Cash          float64
	TotalValue    float64
	// PeriodReturn is NaN on the first row.
	PeriodReturn     float64
	CumulativeReturn float64
}

// Simulate follows the signal table and values the account at every row.
// Non-finite values (e.g. a zero total followed by a return) are propagated.
func Simulate(signals []strategy.SignalRow, p Params) []Row {
	shares := float64(p.Shares)
	unit := 1.0
	if p.ScaleCashByShares {
		unit = shares
	}

	rows := make([]Row, len(signals))
	spent := 0.0
	cumulative := 1.0
	for i, s := range signals {
		delta := s.PositionDelta
		if math.IsNaN(delta) {
			delta = 0
		}
		spent += delta * s.Price * unit

		holdings := shares * s.Signal * s.Price
		cash := p.InitialCapital - spent
		total := holdings + cash

		ret := math.NaN()
		if i > 0 {
			ret = total/rows[i-1].TotalValue - 1
			cumulative *= 1 + ret
		}

		rows[i] = Row{
			Time:             s.Time,
			HoldingsValue:    holdings,
			Cash:             cash,
			TotalValue:       total,
			PeriodReturn:     ret,
			CumulativeReturn: cumulative,
		}
	}
	return rows
}
