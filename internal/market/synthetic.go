package market

import (
	"context"
	"math/rand"
	"time"
)

// Synthetic builds a random-walk series: the cumulative sum of standard normal
// increments offset by base, one point per day starting at start.
func Synthetic(rng *rand.Rand, start time.Time, periods int, base float64) Series {
	if periods < 0 {
		periods = 0
	}
	points := make([]Point, periods)
	level := 0.0
	for i := range points {
		level += rng.NormFloat64()
		points[i] = Point{Time: start.AddDate(0, 0, i), Close: level + base}
	}
	return Series{points: points}
}

// SyntheticSource generates a seeded random-walk series on every Load.
type SyntheticSource struct {
	Seed      int64
	Start     time.Time
	Periods   int
	BasePrice float64
}

// Load returns the same series for the same seed.
func (s SyntheticSource) Load(_ context.Context) (Series, error) {
	rng := rand.New(rand.NewSource(s.Seed))
	return Synthetic(rng, s.Start, s.Periods, s.BasePrice), nil
}
