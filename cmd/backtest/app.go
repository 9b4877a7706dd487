package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"ma-crossover-backtest/internal/backtest"
	"ma-crossover-backtest/internal/config"
	"ma-crossover-backtest/internal/logger"
	"ma-crossover-backtest/internal/market"
	"ma-crossover-backtest/internal/portfolio"
	"ma-crossover-backtest/internal/report"
	"ma-crossover-backtest/internal/strategy"
)

// overrides are command-line values that take precedence over config.yml.
// Zero values mean "not set".
type overrides struct {
	short     int
	long      int
	capital   float64
	shares    int
	scaleCash bool
	style     string
}

func (o *overrides) register(f *flag.FlagSet) {
	f.IntVar(&o.short, "short", 0, "short moving average window (default from config: 40)")
	f.IntVar(&o.long, "long", 0, "long moving average window (default from config: 100)")
	f.Float64Var(&o.capital, "capital", 0, "initial capital (default from config: 100000)")
	f.IntVar(&o.shares, "shares", 0, "shares per position (default from config: 1000)")
	f.BoolVar(&o.scaleCash, "scale-cash", false, "multiply cash deductions by the share count")
	f.StringVar(&o.style, "style", "", "report style: auto, dark, light, notty or raw")
}

func (o *overrides) apply(cfg *config.Config) {
	if o.short > 0 {
		cfg.Strategy.ShortWindow = o.short
	}
	if o.long > 0 {
		cfg.Strategy.LongWindow = o.long
	}
	if o.capital > 0 {
		cfg.Portfolio.InitialCapital = o.capital
	}
	if o.shares > 0 {
		cfg.Portfolio.Shares = o.shares
	}
	if o.scaleCash {
		cfg.Portfolio.ScaleCashByShares = true
	}
	if o.style != "" {
		cfg.Report.Style = o.style
	}
}

// app carries the loaded configuration and logger shared by every command.
type app struct {
	cfg config.Config
	log *zap.Logger
}

func newApp(o *overrides) (*app, error) {
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if o != nil {
		o.apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}
	log.Debug("Configuration loaded", zap.Any("config", cfg))
	return &app{cfg: cfg, log: log}, nil
}

func (a *app) portfolioParams() portfolio.Params {
	return portfolio.Params{
		InitialCapital:    a.cfg.Portfolio.InitialCapital,
		Shares:            a.cfg.Portfolio.Shares,
		ScaleCashByShares: a.cfg.Portfolio.ScaleCashByShares,
	}
}

// backtest runs the pipeline over src and prints the report to stdout.
func (a *app) backtest(ctx context.Context, src market.Source) error {
	p := strategy.Params{ShortWindow: a.cfg.Strategy.ShortWindow, LongWindow: a.cfg.Strategy.LongWindow}
	if p.LongWindow < p.ShortWindow {
		a.log.Warn("Long window is shorter than short window; crossover signals will be inverted",
			zap.Int("short_window", p.ShortWindow), zap.Int("long_window", p.LongWindow))
	}
	strat, err := strategy.NewMovingAverageCrossover(p)
	if err != nil {
		return err
	}

	result, err := backtest.NewRunner(a.log, strat, a.portfolioParams()).Run(ctx, src)
	if err != nil {
		return err
	}

	rep := report.New(report.Options{
		Strategy:   result.Strategy,
		Style:      a.cfg.Report.Style,
		Width:      a.cfg.Report.Width,
		Height:     a.cfg.Report.Height,
		Currency:   a.cfg.Portfolio.Currency,
		ScaledCash: a.cfg.Portfolio.ScaleCashByShares,
	}, a.log)
	return rep.Render(os.Stdout, result.Signals, result.Portfolio, result.Summary)
}

func (a *app) syntheticSource() (market.Source, error) {
	start, err := a.cfg.Data.StartTime()
	if err != nil {
		return nil, err
	}
	return market.SyntheticSource{
		Seed:      a.cfg.Data.Seed,
		Start:     start,
		Periods:   a.cfg.Data.Periods,
		BasePrice: a.cfg.Data.BasePrice,
	}, nil
}

func fail(log *zap.Logger, msg string, err error) {
	if log == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	log.Error(msg, zap.Error(err))
}
