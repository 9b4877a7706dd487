package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/google/subcommands"
	"go.uber.org/zap"
	"ma-crossover-backtest/internal/binance"
	"ma-crossover-backtest/internal/config"
	"ma-crossover-backtest/internal/database"
	"ma-crossover-backtest/internal/market"
)

type demoCmd struct {
	overrides
	seed seedFlag
}

// seedFlag is an int64 flag that records whether it was given, so that an
// explicit -seed 0 overrides the config.
type seedFlag struct {
	value int64
	set   bool
}

func (s *seedFlag) String() string { return strconv.FormatInt(s.value, 10) }

func (s *seedFlag) Set(v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return err
	}
	s.value, s.set = n, true
	return nil
}

func (*demoCmd) Name() string     { return "demo" }
func (*demoCmd) Synopsis() string { return "backtest a seeded random-walk price series" }
func (*demoCmd) Usage() string {
	return `backtest demo [-seed n] [-short n] [-long n] [-capital x] [-shares n]

  Generates 100 daily random-walk closes around 100 and backtests them.
`
}

func (c *demoCmd) SetFlags(f *flag.FlagSet) {
	c.overrides.register(f)
	f.Var(&c.seed, "seed", "random seed (default from config)")
}

func (c *demoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(&c.overrides)
	if err != nil {
		fail(nil, "", err)
		return subcommands.ExitUsageError
	}
	defer a.log.Sync()

	c.applySeed(&a.cfg)
	src, err := a.syntheticSource()
	if err != nil {
		fail(a.log, "Invalid synthetic data settings", err)
		return subcommands.ExitUsageError
	}
	if err := a.backtest(ctx, src); err != nil {
		fail(a.log, "Backtest failed", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *demoCmd) applySeed(cfg *config.Config) {
	if c.seed.set {
		cfg.Data.Seed = c.seed.value
	}
}

type runCmd struct {
	overrides
	source string
	symbol string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "backtest the configured price source" }
func (*runCmd) Usage() string {
	return `backtest run [-source synthetic|database|binance] [-symbol SYMBOL] [-short n] [-long n]

  Backtests prices from the configured source: the seeded random walk, the
  local price store filled by "fetch", or a direct download from Binance.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	c.overrides.register(f)
	f.StringVar(&c.source, "source", "", "price source (default from config)")
	f.StringVar(&c.symbol, "symbol", "", "symbol for database and binance sources (default from config)")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(&c.overrides)
	if err != nil {
		fail(nil, "", err)
		return subcommands.ExitUsageError
	}
	defer a.log.Sync()

	if c.source != "" {
		a.cfg.Data.Source = c.source
	}
	if c.symbol != "" {
		a.cfg.Data.Symbol = c.symbol
	}

	src, closeSource, err := c.openSource(a)
	if err != nil {
		fail(a.log, "Could not open price source", err)
		return subcommands.ExitFailure
	}
	defer closeSource()
	a.log.Info("Running backtest", zap.String("source", a.cfg.Data.Source), zap.String("symbol", a.cfg.Data.Symbol))

	if err := a.backtest(ctx, src); err != nil {
		fail(a.log, "Backtest failed", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// openSource builds the configured price source. The returned func releases
// whatever the source holds open and is never nil.
func (c *runCmd) openSource(a *app) (market.Source, func(), error) {
	noop := func() {}
	switch a.cfg.Data.Source {
	case config.SourceSynthetic:
		src, err := a.syntheticSource()
		return src, noop, err
	case config.SourceDatabase:
		db, err := database.NewDatabase(a.cfg.Database.DSN)
		if err != nil {
			return nil, noop, err
		}
		closeDB := func() {
			if err := database.Close(db); err != nil {
				a.log.Warn("Failed to close price store", zap.Error(err))
			}
		}
		return database.NewCandleStore(db, a.log).Source(a.cfg.Data.Symbol), closeDB, nil
	case config.SourceBinance:
		start, err := a.cfg.Data.StartTime()
		if err != nil {
			return nil, noop, err
		}
		return binance.KlineSource{
			Client:  binance.NewRestClient(&a.cfg.Binance, a.log),
			Symbol:  a.cfg.Data.Symbol,
			Start:   start,
			Periods: a.cfg.Data.Periods,
		}, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown data source %q", a.cfg.Data.Source)
}

type fetchCmd struct {
	symbol string
	start  string
	days   int
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "download daily closes from Binance into the local price store" }
func (*fetchCmd) Usage() string {
	return `backtest fetch [-symbol SYMBOL] [-start YYYY-MM-DD] [-days n]

  Downloads historical daily candles and stores their closes so that
  "run -source database" can backtest them offline.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "symbol", "", "symbol to download (default from config)")
	f.StringVar(&c.start, "start", "", "first day to download (default from config)")
	f.IntVar(&c.days, "days", 0, "number of days to download (default from config)")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(nil)
	if err != nil {
		fail(nil, "", err)
		return subcommands.ExitUsageError
	}
	defer a.log.Sync()

	if c.symbol != "" {
		a.cfg.Data.Symbol = c.symbol
	}
	if c.start != "" {
		a.cfg.Data.Start = c.start
	}
	if c.days > 0 {
		a.cfg.Data.Periods = c.days
	}
	start, err := a.cfg.Data.StartTime()
	if err != nil {
		fail(a.log, "Invalid start date", err)
		return subcommands.ExitUsageError
	}

	db, err := database.NewDatabase(a.cfg.Database.DSN)
	if err != nil {
		fail(a.log, "Failed to open price store", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := database.Close(db); err != nil {
			a.log.Warn("Failed to close price store", zap.Error(err))
		}
	}()
	store := database.NewCandleStore(db, a.log)

	client := binance.NewRestClient(&a.cfg.Binance, a.log)
	if _, err := client.GetServerTime(ctx); err != nil {
		fail(a.log, "Failed to connect to Binance API", err)
		return subcommands.ExitFailure
	}

	series, err := binance.KlineSource{Client: client, Symbol: a.cfg.Data.Symbol, Start: start, Periods: a.cfg.Data.Periods}.Load(ctx)
	if err != nil {
		fail(a.log, "Download failed", err)
		return subcommands.ExitFailure
	}
	n, err := store.SaveSeries(a.cfg.Data.Symbol, "binance", series)
	if err != nil {
		fail(a.log, "Failed to store prices", err)
		return subcommands.ExitFailure
	}

	a.log.Info("Fetch complete",
		zap.String("symbol", a.cfg.Data.Symbol),
		zap.Int("stored", n),
		zap.String("from", start.Format(time.DateOnly)),
	)
	return subcommands.ExitSuccess
}
