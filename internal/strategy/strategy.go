package strategy

import (
	"time"

	"ma-crossover-backtest/internal/market"
)

// SignalRow is one row of the derived signal table, aligned with the input series.
type SignalRow struct {
	Time      time.Time
	Price     float64
	ShortMavg float64
	LongMavg  float64
	Signal    float64 // 0 (flat) or 1 (long)
	// PositionDelta is Signal[i]-Signal[i-1]. It is NaN on the first row.
	PositionDelta float64
}

// Strategy defines the interface for a signal generator.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Generate derives one SignalRow per point of the series.
	Generate(series market.Series) []SignalRow
}
