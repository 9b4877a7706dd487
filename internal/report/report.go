package report

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	md "github.com/nao1215/markdown"
	"go.uber.org/zap"
	"ma-crossover-backtest/internal/portfolio"
	"ma-crossover-backtest/internal/strategy"
)

const (
	StyleAuto  = "auto"
	StyleNoTTY = "notty" // glamour without colours
	StyleRaw   = "raw"   // plain markdown, no terminal styling

	dateLayout = "2006-01-02"
)

// Options controls the report layout.
type Options struct {
	Title    string
	Strategy string
	Style    string
	Width    int // chart columns
	Height   int // chart rows
	Currency string
	// ScaledCash notes which cash formula produced the portfolio table.
	ScaledCash bool
}

// Reporter renders a backtest as a terminal report.
type Reporter struct {
	opts Options
	log  *zap.Logger
}

// New creates a Reporter, filling unset options with defaults.
func New(opts Options, log *zap.Logger) *Reporter {
	if opts.Title == "" {
		opts.Title = "Moving Average Strategy Backtest"
	}
	if opts.Style == "" {
		opts.Style = StyleAuto
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 15
	}
	if opts.Currency == "" {
		opts.Currency = money.USD
	}
	return &Reporter{opts: opts, log: log.Named("report")}
}

// Render writes the styled report to w.
func (r *Reporter) Render(w io.Writer, signals []strategy.SignalRow, rows []portfolio.Row, sum portfolio.Summary) error {
	doc := r.Markdown(signals, rows, sum)
	if r.opts.Style == StyleRaw {
		_, err := io.WriteString(w, doc)
		return err
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(r.opts.Width + 20)}
	if r.opts.Style == StyleAuto {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(r.opts.Style))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	out, err := tr.Render(doc)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	r.log.Debug("Rendered report", zap.Int("rows", len(signals)), zap.String("style", r.opts.Style))
	_, err = io.WriteString(w, out)
	return err
}

// Markdown builds the report document: price chart with both averages, the
// buy/sell markers and the performance summary.
func (r *Reporter) Markdown(signals []strategy.SignalRow, rows []portfolio.Row, sum portfolio.Summary) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(r.opts.Title)
	if len(signals) == 0 {
		doc.PlainText("No price data.")
		return doc.String()
	}

	doc.PlainText(r.period(signals))

	doc.H2("Price")
	doc.CodeBlocks(md.SyntaxHighlight("text"), r.chart(signals))

	doc.H2("Signals")
	markers := strategy.Markers(signals)
	if len(markers) == 0 {
		doc.PlainText("No crossovers in this period.")
	} else {
		table := md.TableSet{Header: []string{"Date", "Signal", "Price", "Short MA"}}
		for _, m := range markers {
			arrow := "▲ buy"
			if m.Side == strategy.SideSell {
				arrow = "▼ sell"
			}
			table.Rows = append(table.Rows, []string{
				m.Time.Format(dateLayout), arrow, formatNumber(m.Price), formatNumber(m.Level),
			})
		}
		doc.Table(table)
	}

	doc.H2("Performance")
	cashRule := "one unit per trade"
	if r.opts.ScaledCash {
		cashRule = "scaled by shares"
	}
	perf := md.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Initial capital", r.formatMoney(sum.InitialCapital)},
			{"Final value", r.formatMoney(sum.FinalValue)},
			{"Total return", formatPercent(sum.TotalReturn)},
			{"Max drawdown", formatPercent(sum.MaxDrawdown)},
			{"Buys / sells", fmt.Sprintf("%d / %d", sum.Buys, sum.Sells)},
			{"Open position", yesNo(sum.OpenPosition)},
			{"Cash deduction", cashRule},
		},
	}
	if len(rows) > 0 {
		end := rows[len(rows)-1]
		perf.Rows = append(perf.Rows,
			[]string{"Final cash", r.formatMoney(end.Cash)},
			[]string{"Final holdings", r.formatMoney(end.HoldingsValue)},
		)
	}
	doc.Table(perf)

	return doc.String()
}

// period describes the backtested range, e.g. "MA-Crossover(40/100), 250 days
// from 2023-01-01 to 2023-09-07."
func (r *Reporter) period(signals []strategy.SignalRow) string {
	unit := "days"
	if len(signals) == 1 {
		unit = "day"
	}
	text := fmt.Sprintf("%d %s from %s to %s.", len(signals), unit,
		signals[0].Time.Format(dateLayout), signals[len(signals)-1].Time.Format(dateLayout))
	if r.opts.Strategy == "" {
		return text
	}
	return r.opts.Strategy + ", " + text
}

func (r *Reporter) formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return formatNumber(v)
	}
	return money.NewFromFloat(v, r.opts.Currency).Display()
}

func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return formatNumber(v)
	}
	return fmt.Sprintf("%+.2f%%", v*100)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
