// Package charts renders dashboard charts as PNG images.
package charts

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"fintrack/internal/core"
)

// Palette is cycled by key order for category slices.
var Palette = []string{
	"#22D3EE", "#7C5CFF", "#24D17E", "#F59E0B", "#F472B6",
	"#60A5FA", "#34D399", "#F43F5E", "#A78BFA", "#FCD34D",
}

var (
	incomeColor  = drawing.ColorFromHex("24D17E")
	expenseColor = drawing.ColorFromHex("F43F5E")
	netColor     = drawing.ColorFromHex("7C5CFF")
	mutedColor   = drawing.ColorFromHex("94A3B8")
)

// PaletteColor returns the colour of the i-th category.
func PaletteColor(i int) string {
	return Palette[i%len(Palette)]
}

type Renderer struct {
	Width  int
	Height int
}

func NewRenderer() *Renderer {
	return &Renderer{Width: 640, Height: 360}
}

func (r *Renderer) background() chart.Style {
	return chart.Style{
		Padding:   chart.Box{Top: 30, Left: 20, Right: 20, Bottom: 20},
		FillColor: drawing.ColorTransparent,
	}
}

// ByCategory renders expense share per category. Categories with no
// positive amount are left out.
func (r *Renderer) ByCategory(items []core.CategoryAmount) ([]byte, error) {
	values := make([]chart.Value, 0, len(items))
	for i, it := range items {
		v := it.Amount.InexactFloat64()
		if v <= 0 {
			continue
		}
		c := drawing.ColorFromHex(PaletteColor(i)[1:])
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", it.Name, core.FormatINR(it.Amount)),
			Value: v,
			Style: chart.Style{FillColor: c, StrokeColor: c, FontColor: chart.ColorBlack},
		})
	}
	if len(values) == 0 {
		return r.placeholder()
	}

	pie := chart.PieChart{
		Width:      r.Width,
		Height:     r.Height,
		Background: r.background(),
		Values:     values,
	}
	return render("category chart", pie.Render)
}

// OverTime renders income and expense per bucket. Fewer than two buckets
// cannot form a line and are drawn as bars.
func (r *Renderer) OverTime(buckets []core.Bucket) ([]byte, error) {
	if len(buckets) < 2 {
		if len(buckets) == 0 {
			return r.placeholder()
		}
		b := buckets[0]
		return r.bars(b.Key, []bar{
			{"Income", b.Income, incomeColor},
			{"Expense", b.Expense, expenseColor},
		})
	}

	xs := make([]float64, len(buckets))
	income := make([]float64, len(buckets))
	expense := make([]float64, len(buckets))
	ticks := make([]chart.Tick, len(buckets))
	hi := 0.0
	for i, b := range buckets {
		xs[i] = float64(i)
		income[i] = b.Income.InexactFloat64()
		expense[i] = b.Expense.InexactFloat64()
		ticks[i] = chart.Tick{Value: xs[i], Label: b.Key}
		hi = math.Max(hi, math.Max(income[i], expense[i]))
	}
	if hi == 0 {
		return r.placeholder()
	}

	graph := chart.Chart{
		Width:      r.Width,
		Height:     r.Height,
		Background: r.background(),
		XAxis:      chart.XAxis{Ticks: ticks},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: hi * 1.1},
			ValueFormatter: rupees,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Income",
				XValues: xs,
				YValues: income,
				Style:   chart.Style{StrokeColor: incomeColor, StrokeWidth: 2, FillColor: incomeColor.WithAlpha(46)},
			},
			chart.ContinuousSeries{
				Name:    "Expense",
				XValues: xs,
				YValues: expense,
				Style:   chart.Style{StrokeColor: expenseColor, StrokeWidth: 2, FillColor: expenseColor.WithAlpha(46)},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return render("over time chart", graph.Render)
}

// Totals renders the income, expense and net bars.
func (r *Renderer) Totals(s core.Summary) ([]byte, error) {
	return r.bars("", []bar{
		{"Income", s.Income, incomeColor},
		{"Expense", s.Expense, expenseColor},
		{"Net", s.Income.Sub(s.Expense), netColor},
	})
}

type bar struct {
	label  string
	amount decimal.Decimal
	color  drawing.Color
}

func (r *Renderer) bars(title string, bars []bar) ([]byte, error) {
	lo, hi := 0.0, 0.0
	values := make([]chart.Value, len(bars))
	for i, b := range bars {
		v := b.amount.InexactFloat64()
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		values[i] = chart.Value{
			Label: b.label,
			Value: v,
			Style: chart.Style{FillColor: b.color, StrokeColor: b.color},
		}
	}
	if lo == 0 && hi == 0 {
		return r.placeholder()
	}

	graph := chart.BarChart{
		Title:        title,
		Width:        r.Width,
		Height:       r.Height,
		BarWidth:     60,
		Background:   r.background(),
		UseBaseValue: lo < 0,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: lo * 1.1, Max: hi * 1.1},
			ValueFormatter: rupees,
		},
		Bars: values,
	}
	return render("bar chart", graph.Render)
}

func (r *Renderer) placeholder() ([]byte, error) {
	pie := chart.PieChart{
		Width:      r.Width,
		Height:     r.Height,
		Background: r.background(),
		Values: []chart.Value{{
			Label: "No data",
			Value: 1,
			Style: chart.Style{FillColor: mutedColor, StrokeColor: mutedColor},
		}},
	}
	return render("placeholder chart", pie.Render)
}

func render(name string, fn func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func rupees(v any) string {
	if f, ok := v.(float64); ok {
		return "₹" + decimal.NewFromFloat(f).StringFixed(0)
	}
	return ""
}
