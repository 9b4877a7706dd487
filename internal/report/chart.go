package report

import (
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"
	"ma-crossover-backtest/internal/strategy"
)

const (
	buyGlyph  = '▲'
	sellGlyph = '▼'
)

var (
	seriesLegends = []string{"Price", "Short Moving Average", "Long Moving Average"}
	seriesColors  = []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Orange, asciigraph.Gray}
)

// chart plots price and both averages on one axis, with buy and sell markers
// drawn on the short average.
func (r *Reporter) chart(signals []strategy.SignalRow) string {
	price := make([]float64, len(signals))
	short := make([]float64, len(signals))
	long := make([]float64, len(signals))
	for i, s := range signals {
		price[i], short[i], long[i] = s.Price, s.ShortMavg, s.LongMavg
	}

	opts := []asciigraph.Option{
		asciigraph.Height(r.opts.Height),
		asciigraph.Width(r.opts.Width),
		asciigraph.Precision(2),
		asciigraph.SeriesLegends(seriesLegends...),
		asciigraph.SeriesColors(seriesColors...),
		asciigraph.Caption(string(buyGlyph) + " buy  " + string(sellGlyph) + " sell"),
	}
	plot := r.drawMarkers(asciigraph.PlotMany([][]float64{price, short, long}, opts...), signals, price, short, long)
	if !r.colored() {
		return stripColors(plot)
	}
	return plot
}

// colored reports whether the chart keeps its ANSI colours; plain markdown
// and glamour's notty style get bare glyphs.
func (r *Reporter) colored() bool {
	return r.opts.Style != StyleNoTTY && r.opts.Style != StyleRaw
}

// drawMarkers overwrites the plot cell at each crossover's short average with
// a buy or sell glyph.
func (r *Reporter) drawMarkers(plot string, signals []strategy.SignalRow, series ...[]float64) string {
	markers := strategy.Markers(signals)
	if len(markers) == 0 {
		return plot
	}
	lo, hi := bounds(series...)
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return plot
	}

	lines := strings.Split(plot, "\n")
	grid := make([]cellLine, 0, len(lines))
	for _, l := range lines {
		cl := parseCells(l)
		if cl.axis() < 0 {
			break
		}
		grid = append(grid, cl)
	}
	if len(grid) == 0 {
		return plot
	}

	index := make(map[int64]int, len(signals))
	for i, s := range signals {
		index[s.Time.UnixNano()] = i
	}
	width := r.opts.Width
	for _, m := range markers {
		if math.IsNaN(m.Level) || math.IsInf(m.Level, 0) {
			continue
		}
		i := index[m.Time.UnixNano()]
		col := column(i, len(signals), width)
		row := 0
		if hi > lo {
			row = int(math.Round((hi - m.Level) / (hi - lo) * float64(len(grid)-1)))
		}
		if row < 0 || row >= len(grid) {
			continue
		}
		glyph, color := buyGlyph, asciigraph.Green
		if m.Side == strategy.SideSell {
			glyph, color = sellGlyph, asciigraph.Red
		}
		grid[row].set(grid[row].axis()+1+col, glyph, color)
	}

	for i, cl := range grid {
		lines[i] = cl.String()
	}
	return strings.Join(lines, "\n")
}

// column maps data index i of n onto a chart of the given width the way
// asciigraph stretches each series.
func column(i, n, width int) int {
	if n <= 1 || width <= 1 {
		return 0
	}
	return int(math.Round(float64(i) * float64(width-1) / float64(n-1)))
}

func bounds(series ...[]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	return lo, hi
}

// cell is one visible rune of a plot line with the escape code preceding it.
type cell struct {
	esc string
	r   rune
}

type cellLine struct {
	cells []cell
	tail  string
}

func parseCells(line string) cellLine {
	var cl cellLine
	var esc strings.Builder
	rs := []rune(line)
	for i := 0; i < len(rs); i++ {
		if rs[i] == '\x1b' {
			j := i
			for j < len(rs) && rs[j] != 'm' {
				j++
			}
			if j == len(rs) {
				j--
			}
			esc.WriteString(string(rs[i : j+1]))
			i = j
			continue
		}
		cl.cells = append(cl.cells, cell{esc: esc.String(), r: rs[i]})
		esc.Reset()
	}
	cl.tail = esc.String()
	return cl
}

func (cl cellLine) axis() int {
	for i, c := range cl.cells {
		if c.r == '┤' || c.r == '┼' {
			return i
		}
	}
	return -1
}

// set replaces cell i with r drawn in color, padding trimmed lines with
// spaces. asciigraph only emits a colour when it changes, so the colour in
// effect at i is restored after the new cell.
func (cl *cellLine) set(i int, r rune, color asciigraph.AnsiColor) {
	for len(cl.cells) <= i {
		cl.cells = append(cl.cells, cell{r: ' '})
	}
	active := asciigraph.Default.String()
	for _, c := range cl.cells[:i+1] {
		if c.esc != "" {
			active = c.esc
		}
	}
	cl.cells[i] = cell{r: r, esc: color.String()}
	if i+1 < len(cl.cells) {
		if cl.cells[i+1].esc == "" {
			cl.cells[i+1].esc = active
		}
	} else {
		cl.tail = asciigraph.Default.String() + cl.tail
	}
}

func stripColors(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		cl := parseCells(l)
		var b strings.Builder
		for _, c := range cl.cells {
			b.WriteRune(c.r)
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

func (cl cellLine) String() string {
	var b strings.Builder
	for _, c := range cl.cells {
		b.WriteString(c.esc)
		b.WriteRune(c.r)
	}
	b.WriteString(cl.tail)
	return b.String()
}
