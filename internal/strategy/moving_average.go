package strategy

import (
	"fmt"
	"math"

	"ma-crossover-backtest/internal/market"
)

const (
	DefaultShortWindow = 40
	DefaultLongWindow  = 100
)

// Params configures the moving average crossover.
// LongWindow is expected to be >= ShortWindow; this is not enforced.
type Params struct {
	ShortWindow int
	LongWindow  int
}

// DefaultParams returns the 40/100 crossover.
func DefaultParams() Params {
	return Params{ShortWindow: DefaultShortWindow, LongWindow: DefaultLongWindow}
}

// MovingAverageCrossover goes long while the short trailing mean is strictly
// above the long trailing mean. The first ShortWindow rows are held flat.
type MovingAverageCrossover struct {
	params Params
}

var _ Strategy = (*MovingAverageCrossover)(nil)

// NewMovingAverageCrossover validates the window sizes and builds the strategy.
func NewMovingAverageCrossover(p Params) (*MovingAverageCrossover, error) {
	if p.ShortWindow < 1 || p.LongWindow < 1 {
		return nil, fmt.Errorf("windows must be positive, got short=%d long=%d", p.ShortWindow, p.LongWindow)
	}
	return &MovingAverageCrossover{params: p}, nil
}

func (s *MovingAverageCrossover) Name() string {
	return fmt.Sprintf("MA-Crossover(%d/%d)", s.params.ShortWindow, s.params.LongWindow)
}

// Params returns the configured windows.
func (s *MovingAverageCrossover) Params() Params { return s.params }

// Generate builds the full signal table in a single pass.
func (s *MovingAverageCrossover) Generate(series market.Series) []SignalRow {
	closes := series.Closes()
	short := RollingMean(closes, s.params.ShortWindow)
	long := RollingMean(closes, s.params.LongWindow)

	rows := make([]SignalRow, len(closes))
	prev := 0.0
	for i, price := range closes {
		sig := 0.0
		if i >= s.params.ShortWindow && short[i] > long[i] {
			sig = 1.0
		}
		delta := math.NaN()
		if i > 0 {
			delta = sig - prev
		}
		rows[i] = SignalRow{
			Time:          series.At(i).Time,
			Price:         price,
			ShortMavg:     short[i],
			LongMavg:      long[i],
			Signal:        sig,
			PositionDelta: delta,
		}
		prev = sig
	}
	return rows
}

// RollingMean returns the trailing mean of values over window elements. Leading
// entries average over however many values are available, so the output never
// contains gaps. A window < 1 is treated as 1.
func RollingMean(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum := 0.0
		for _, v := range values[lo : i+1] {
			sum += v
		}
		out[i] = sum / float64(i+1-lo)
	}
	return out
}
