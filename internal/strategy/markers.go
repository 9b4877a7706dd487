package strategy

import "time"

// Side of a trade marker.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Marker is a crossover event. Price is the close at that time and Level is the
// short moving average, where charts place the marker.
type Marker struct {
	Time  time.Time
	Side  Side
	Price float64
	Level float64
}

// Markers extracts the buy (delta = +1) and sell (delta = -1) events in order.
func Markers(rows []SignalRow) []Marker {
	var out []Marker
	for _, r := range rows {
		switch r.PositionDelta {
		case 1:
			out = append(out, Marker{Time: r.Time, Side: SideBuy, Price: r.Price, Level: r.ShortMavg})
		case -1:
			out = append(out, Marker{Time: r.Time, Side: SideSell, Price: r.Price, Level: r.ShortMavg})
		}
	}
	return out
}
