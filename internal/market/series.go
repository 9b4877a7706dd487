package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnordered is returned when series timestamps are not strictly increasing.
var ErrUnordered = errors.New("timestamps must be strictly increasing")

// Point is a single closing price observation.
type Point struct {
	Time  time.Time
	Close float64
}

// Series is an immutable, time-ordered sequence of closing prices.
type Series struct {
	points []Point
}

// Source provides a price series to the backtest runner.
type Source interface {
	Load(ctx context.Context) (Series, error)
}

// NewSeries copies points into a new Series. Timestamps must be strictly increasing.
func NewSeries(points []Point) (Series, error) {
	for i := 1; i < len(points); i++ {
		if !points[i].Time.After(points[i-1].Time) {
			return Series{}, fmt.Errorf("point %d at %s: %w", i, points[i].Time.Format(time.RFC3339), ErrUnordered)
		}
	}
	cp := make([]Point, len(points))
	copy(cp, points)
	return Series{points: cp}, nil
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.points) }

// At returns the i-th point.
func (s Series) At(i int) Point { return s.points[i] }

// Points returns a copy of the underlying points.
func (s Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Closes returns the closing prices in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}
