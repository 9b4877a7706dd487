package backtest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"ma-crossover-backtest/internal/market"
	"ma-crossover-backtest/internal/portfolio"
	"ma-crossover-backtest/internal/strategy"
)

// Result holds every table a run produces.
type Result struct {
	Strategy  string
	Signals   []strategy.SignalRow
	Portfolio []portfolio.Row
	Summary   portfolio.Summary
}

// Runner loads prices from a source and pushes them through the strategy and
// the portfolio simulator.
type Runner struct {
	logger   *zap.Logger
	strategy strategy.Strategy
	params   portfolio.Params
}

// NewRunner creates a new backtest runner.
func NewRunner(logger *zap.Logger, strat strategy.Strategy, params portfolio.Params) *Runner {
	return &Runner{
		logger:   logger.Named("backtest"),
		strategy: strat,
		params:   params,
	}
}

// Run loads the series from src and evaluates it.
func (r *Runner) Run(ctx context.Context, src market.Source) (*Result, error) {
	r.logger.Info("Loading price series...")
	series, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load price series: %w", err)
	}
	return r.Evaluate(series), nil
}

// Evaluate runs the pipeline over an in-memory series. It never fails.
func (r *Runner) Evaluate(series market.Series) *Result {
	l := r.logger.With(zap.String("strategy", r.strategy.Name()), zap.Int("points", series.Len()))
	if series.Len() == 0 {
		l.Warn("Price series is empty, nothing to trade")
	}

	signals := r.strategy.Generate(series)
	l.Debug("Signals generated", zap.Int("rows", len(signals)))

	rows := portfolio.Simulate(signals, r.params)
	summary := portfolio.Summarize(signals, rows, r.params)

	l.Info("Backtest complete",
		zap.Float64("final_value", summary.FinalValue),
		zap.Float64("total_return", summary.TotalReturn),
		zap.Int("buys", summary.Buys),
		zap.Int("sells", summary.Sells),
		zap.Bool("open_position", summary.OpenPosition),
	)

	return &Result{
		Strategy:  r.strategy.Name(),
		Signals:   signals,
		Portfolio: rows,
		Summary:   summary,
	}
}
