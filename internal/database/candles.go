package database

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"ma-crossover-backtest/internal/market"
	"ma-crossover-backtest/internal/models"
)

// ErrNoCandles is returned when a symbol has no stored prices.
var ErrNoCandles = errors.New("no candles stored")

const batchSize = 500

// CandleStore reads and writes daily closes.
type CandleStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCandleStore wraps an open database.
func NewCandleStore(db *gorm.DB, log *zap.Logger) *CandleStore {
	return &CandleStore{db: db, log: log.Named("candle-store")}
}

// SaveSeries upserts every point of series for symbol and returns the number
// of rows written.
func (s *CandleStore) SaveSeries(symbol, source string, series market.Series) (int, error) {
	if series.Len() == 0 {
		return 0, nil
	}
	candles := make([]models.Candle, series.Len())
	for i, p := range series.Points() {
		candles[i] = models.Candle{
			Symbol:   symbol,
			OpenTime: p.Time.UTC(),
			Close:    p.Close,
			Source:   source,
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "open_time"}},
			DoUpdates: clause.AssignmentColumns([]string{"close", "source", "updated_at"}),
		}).CreateInBatches(&candles, batchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save candles for %s: %w", symbol, err)
	}

	s.log.Info("Saved candles", zap.String("symbol", symbol), zap.Int("count", len(candles)))
	return len(candles), nil
}

// LoadSeries returns all stored closes for symbol in time order.
func (s *CandleStore) LoadSeries(symbol string) (market.Series, error) {
	var candles []models.Candle
	if err := s.db.Where("symbol = ?", symbol).Order("open_time asc").Find(&candles).Error; err != nil {
		return market.Series{}, fmt.Errorf("failed to load candles for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return market.Series{}, fmt.Errorf("%s: %w", symbol, ErrNoCandles)
	}

	points := make([]market.Point, len(candles))
	for i, c := range candles {
		points[i] = market.Point{Time: c.OpenTime.UTC(), Close: c.Close}
	}
	series, err := market.NewSeries(points)
	if err != nil {
		return market.Series{}, fmt.Errorf("stored candles for %s are invalid: %w", symbol, err)
	}

	s.log.Debug("Loaded candles", zap.String("symbol", symbol), zap.Int("count", series.Len()))
	return series, nil
}

// Symbols lists the symbols that have stored prices.
func (s *CandleStore) Symbols() ([]string, error) {
	var symbols []string
	if err := s.db.Model(&models.Candle{}).Distinct().Order("symbol").Pluck("symbol", &symbols).Error; err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	return symbols, nil
}

// Source adapts the store into a market.Source for one symbol.
func (s *CandleStore) Source(symbol string) market.Source {
	return symbolSource{store: s, symbol: symbol}
}

type symbolSource struct {
	store  *CandleStore
	symbol string
}

func (src symbolSource) Load(ctx context.Context) (market.Series, error) {
	if err := ctx.Err(); err != nil {
		return market.Series{}, err
	}
	return src.store.LoadSeries(src.symbol)
}
