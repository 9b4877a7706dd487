package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"ma-crossover-backtest/internal/market"
)

// Kline is the part of an exchange candle the backtester uses.
type Kline struct {
	OpenTime time.Time
	Close    float64
}

// GetDailyCloses downloads up to limit daily candles for symbol, starting at
// start, paging through the /klines endpoint as needed.
func (c *RestClient) GetDailyCloses(ctx context.Context, symbol string, start time.Time, limit int) ([]Kline, error) {
	l := c.logger.With(zap.String("symbol", symbol), zap.Time("start", start), zap.Int("limit", limit))

	var out []Kline
	next := start
	for len(out) < limit {
		page := limit - len(out)
		if page > maxKlineLimit {
			page = maxKlineLimit
		}

		var raw [][]any
		req := c.client.R().
			SetResult(&raw).
			SetQueryParams(map[string]string{
				"symbol":    symbol,
				"interval":  IntervalDaily,
				"startTime": strconv.FormatInt(next.UnixMilli(), 10),
				"limit":     strconv.Itoa(page),
			})

		if _, err := c.doRequest(ctx, http.MethodGet, "/klines", req); err != nil {
			return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
		}

		klines, err := parseKlines(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse klines for %s: %w", symbol, err)
		}
		out = append(out, klines...)
		l.Debug("Fetched kline page", zap.Int("rows", len(klines)), zap.Int("total", len(out)))

		if len(klines) < page {
			break // no more history
		}
		next = klines[len(klines)-1].OpenTime.AddDate(0, 0, 1)
	}

	l.Info("Downloaded daily closes", zap.Int("count", len(out)))
	return out, nil
}

// parseKlines decodes rows of [openTime, open, high, low, close, ...].
func parseKlines(raw [][]any) ([]Kline, error) {
	out := make([]Kline, 0, len(raw))
	for i, row := range raw {
		if len(row) < 5 {
			return nil, fmt.Errorf("row %d: expected at least 5 fields, got %d", i, len(row))
		}
		openMs, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("row %d: open time is %T", i, row[0])
		}
		closeStr, ok := row[4].(string)
		if !ok {
			return nil, fmt.Errorf("row %d: close is %T", i, row[4])
		}
		closeDec, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid close %q: %w", i, closeStr, err)
		}
		closePrice, _ := closeDec.Float64()
		out = append(out, Kline{
			OpenTime: time.UnixMilli(int64(openMs)).UTC(),
			Close:    closePrice,
		})
	}
	return out, nil
}

// KlineSource downloads a daily series on Load.
type KlineSource struct {
	Client  RestClientInterface
	Symbol  string
	Start   time.Time
	Periods int
}

func (s KlineSource) Load(ctx context.Context) (market.Series, error) {
	klines, err := s.Client.GetDailyCloses(ctx, s.Symbol, s.Start, s.Periods)
	if err != nil {
		return market.Series{}, err
	}
	points := make([]market.Point, len(klines))
	for i, k := range klines {
		points[i] = market.Point{Time: k.OpenTime, Close: k.Close}
	}
	return market.NewSeries(points)
}
