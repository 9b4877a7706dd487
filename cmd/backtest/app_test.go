package main

import (
	"context"
	"flag"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"ma-crossover-backtest/internal/config"
	"ma-crossover-backtest/internal/database"
)

func TestOverrides(t *testing.T) {
	var o overrides
	f := flag.NewFlagSet("demo", flag.ContinueOnError)
	o.register(f)
	require.NoError(t, f.Parse([]string{"-short", "5", "-long", "10", "-scale-cash", "-style", "raw"}))

	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	o.apply(&cfg)

	assert.Equal(t, 5, cfg.Strategy.ShortWindow)
	assert.Equal(t, 10, cfg.Strategy.LongWindow)
	assert.True(t, cfg.Portfolio.ScaleCashByShares)
	assert.Equal(t, "raw", cfg.Report.Style)
	// untouched
	assert.Equal(t, 100000.0, cfg.Portfolio.InitialCapital)
	assert.Equal(t, 1000, cfg.Portfolio.Shares)
}

func TestDemoCmd_Seed(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		expected int64
	}{
		{name: "Unset keeps config", args: nil, expected: 1},
		{name: "Explicit zero", args: []string{"-seed", "0"}, expected: 0},
		{name: "Explicit value", args: []string{"-seed", "42"}, expected: 42},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := &demoCmd{}
			f := flag.NewFlagSet("demo", flag.ContinueOnError)
			c.SetFlags(f)
			require.NoError(t, f.Parse(tc.args))

			cfg, err := config.LoadConfig(t.TempDir())
			require.NoError(t, err)
			c.applySeed(&cfg)

			assert.Equal(t, tc.expected, cfg.Data.Seed)
		})
	}

	t.Run("Malformed", func(t *testing.T) {
		f := flag.NewFlagSet("demo", flag.ContinueOnError)
		f.SetOutput(io.Discard)
		(&demoCmd{}).SetFlags(f)
		assert.Error(t, f.Parse([]string{"-seed", "abc"}))
	})
}

func TestRunCmd_OpenSource(t *testing.T) {
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)
	a := &app{cfg: cfg, log: zap.NewNop()}

	t.Run("Synthetic", func(t *testing.T) {
		src, closeSource, err := (&runCmd{}).openSource(a)
		require.NoError(t, err)
		defer closeSource()
		series, err := src.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 100, series.Len())
	})

	t.Run("DatabaseIsClosed", func(t *testing.T) {
		a.cfg.Data.Source = config.SourceDatabase
		a.cfg.Database.DSN = filepath.Join(t.TempDir(), "prices.db")

		src, closeSource, err := (&runCmd{}).openSource(a)
		require.NoError(t, err)
		_, err = src.Load(context.Background())
		assert.ErrorIs(t, err, database.ErrNoCandles)

		closeSource()
		_, err = src.Load(context.Background())
		assert.Error(t, err)
		assert.NotErrorIs(t, err, database.ErrNoCandles, "store must be closed")
	})

	t.Run("Unknown", func(t *testing.T) {
		a.cfg.Data.Source = "csv"
		_, closeSource, err := (&runCmd{}).openSource(a)
		assert.Error(t, err)
		assert.NotNil(t, closeSource)
	})
}
