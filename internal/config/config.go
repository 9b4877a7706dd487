package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Data sources understood by the backtest CLI.
const (
	SourceSynthetic = "synthetic"
	SourceDatabase  = "database"
	SourceBinance   = "binance"
)

// Config holds all configuration for the application.
type Config struct {
	Strategy  Strategy  `mapstructure:"strategy"`
	Portfolio Portfolio `mapstructure:"portfolio"`
	Data      Data      `mapstructure:"data"`
	Binance   Binance   `mapstructure:"binance"`
	Database  Database  `mapstructure:"database"`
	Report    Report    `mapstructure:"report"`
	Logger    Logger    `mapstructure:"logger"`
}

// Strategy holds the moving average windows.
type Strategy struct {
	ShortWindow int `mapstructure:"short_window"`
	LongWindow  int `mapstructure:"long_window"`
}

// Portfolio holds the simulated account settings.
type Portfolio struct {
	InitialCapital    float64 `mapstructure:"initial_capital"`
	Shares            int     `mapstructure:"shares"`
	ScaleCashByShares bool    `mapstructure:"scale_cash_by_shares"`
	Currency          string  `mapstructure:"currency"`
}

// Data selects where prices come from.
type Data struct {
	Source    string  `mapstructure:"source"`
	Symbol    string  `mapstructure:"symbol"`
	Start     string  `mapstructure:"start"` // YYYY-MM-DD
	Periods   int     `mapstructure:"periods"`
	Seed      int64   `mapstructure:"seed"`
	BasePrice float64 `mapstructure:"base_price"`
}

// Binance holds the configuration for the Binance market data API.
type Binance struct {
	BaseURL        string  `mapstructure:"base_url"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Database holds the configuration for the local price store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Report holds the terminal rendering options.
type Report struct {
	Style  string `mapstructure:"style"` // auto, dark, light, notty or raw
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StartTime parses Data.Start.
func (d Data) StartTime() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, d.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid data.start %q: %w", d.Start, err)
	}
	return t, nil
}

// Validate checks values the rest of the application relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Strategy.ShortWindow < 1 {
		errs = append(errs, fmt.Errorf("strategy.short_window must be positive, got %d", c.Strategy.ShortWindow))
	}
	if c.Strategy.LongWindow < 1 {
		errs = append(errs, fmt.Errorf("strategy.long_window must be positive, got %d", c.Strategy.LongWindow))
	}
	if c.Portfolio.InitialCapital <= 0 {
		errs = append(errs, fmt.Errorf("portfolio.initial_capital must be positive, got %v", c.Portfolio.InitialCapital))
	}
	if c.Portfolio.Shares < 1 {
		errs = append(errs, fmt.Errorf("portfolio.shares must be positive, got %d", c.Portfolio.Shares))
	}
	switch c.Data.Source {
	case SourceSynthetic, SourceDatabase, SourceBinance:
	default:
		errs = append(errs, fmt.Errorf("unknown data.source %q", c.Data.Source))
	}
	if _, err := c.Data.StartTime(); err != nil {
		errs = append(errs, err)
	}
	switch c.Report.Style {
	case "auto", "dark", "light", "notty", "raw":
	default:
		errs = append(errs, fmt.Errorf("unknown report.style %q", c.Report.Style))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy.short_window", 40)
	v.SetDefault("strategy.long_window", 100)

	v.SetDefault("portfolio.initial_capital", 100000.0)
	v.SetDefault("portfolio.shares", 1000)
	v.SetDefault("portfolio.scale_cash_by_shares", false)
	v.SetDefault("portfolio.currency", "USD")

	v.SetDefault("data.source", SourceSynthetic)
	v.SetDefault("data.symbol", "BTCUSDT")
	v.SetDefault("data.start", "2023-01-01")
	v.SetDefault("data.periods", 100)
	v.SetDefault("data.seed", 1)
	v.SetDefault("data.base_price", 100.0)

	v.SetDefault("binance.base_url", "")
	v.SetDefault("binance.testnet", false)
	v.SetDefault("binance.rate_limit", 20)      // requests per second
	v.SetDefault("binance.rate_limit_burst", 5) // burst size

	v.SetDefault("database.dsn", "prices.db")

	v.SetDefault("report.style", "auto")
	v.SetDefault("report.width", 80)
	v.SetDefault("report.height", 15)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

// LoadConfig reads config.yml from path, then applies environment overrides
// (e.g. STRATEGY_SHORT_WINDOW). A missing file leaves the defaults in place.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}
	return config, nil
}
