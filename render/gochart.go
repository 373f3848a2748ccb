package render

import (
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/spektr-org/ecomdash/engine"
)

// ============================================================================
// GO-CHART: bar, stacked bar, line, area, pie
// ============================================================================

func (r *Renderer) bar(cfg *engine.ChartConfig, w io.Writer) error {
	points := cfg.Series[0].Data
	bars := make([]chart.Value, len(points))
	max := 0.0
	for i, p := range points {
		bars[i] = chart.Value{
			Value: p.Value,
			Label: p.Label,
			Style: chart.Style{FillColor: colorAt(cfg, 0), StrokeColor: colorAt(cfg, 0)},
		}
		max = math.Max(max, p.Value)
	}

	bc := chart.BarChart{
		Title:      cfg.Title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarWidth:   barWidth(r.Width, len(bars)),
		Bars:       bars,
		YAxis:      chart.YAxis{Name: cfg.YAxis, Range: &chart.ContinuousRange{Min: 0, Max: headroom(max)}},
	}
	return bc.Render(chart.PNG, w)
}

func (r *Renderer) stackedBar(cfg *engine.ChartConfig, w io.Writer) error {
	labels := cfg.Series[0].Data
	bars := make([]chart.StackedBar, len(labels))
	for i, p := range labels {
		values := make([]chart.Value, 0, len(cfg.Series))
		for si, s := range cfg.Series {
			if i >= len(s.Data) {
				continue
			}
			values = append(values, chart.Value{
				Label: s.Name,
				Value: s.Data[i].Value,
				Style: chart.Style{FillColor: colorAt(cfg, si), StrokeColor: colorAt(cfg, si)},
			})
		}
		bars[i] = chart.StackedBar{Name: p.Label, Values: values}
	}

	sbc := chart.StackedBarChart{
		Title:      cfg.Title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		BarSpacing: 8,
		Bars:       bars,
	}
	return sbc.Render(chart.PNG, w)
}

func (r *Renderer) line(cfg *engine.ChartConfig, w io.Writer, fill bool) error {
	n := len(cfg.Series[0].Data)
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	// go-chart needs two distinct x values; a lone point becomes a short
	// flat segment centred on its slot.
	single := n == 1
	if single {
		xs = []float64{-0.25, 0.25}
	}

	stride := labelStride(n, 12)
	ticks := make([]chart.Tick, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: cfg.Series[0].Data[i].Label})
	}

	lo, hi := 0.0, 0.0
	series := make([]chart.Series, 0, len(cfg.Series))
	for si, s := range cfg.Series {
		ys := make([]float64, n)
		for i := 0; i < n && i < len(s.Data); i++ {
			ys[i] = s.Data[i].Value
			lo, hi = math.Min(lo, ys[i]), math.Max(hi, ys[i])
		}
		if single {
			ys = []float64{ys[0], ys[0]}
		}
		style := chart.Style{StrokeColor: colorAt(cfg, si), StrokeWidth: 2}
		if fill {
			style.FillColor = colorAt(cfg, si).WithAlpha(64)
		}
		series = append(series, chart.ContinuousSeries{Name: s.Name, XValues: xs, YValues: ys, Style: style})
	}

	ch := chart.Chart{
		Title:      cfg.Title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  cfg.XAxis,
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(n) - 0.5},
			Ticks: ticks,
		},
		YAxis:  chart.YAxis{Name: cfg.YAxis, Range: &chart.ContinuousRange{Min: lo, Max: headroom(hi)}},
		Series: series,
	}
	if len(series) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return ch.Render(chart.PNG, w)
}

func (r *Renderer) pie(cfg *engine.ChartConfig, w io.Writer) error {
	points := cfg.Series[0].Data
	values := make([]chart.Value, 0, len(points))
	for i, p := range points {
		if p.Value <= 0 {
			continue
		}
		label := p.Label
		if p.Share > 0 {
			label = fmt.Sprintf("%s (%.1f%%)", p.Label, p.Share)
		}
		values = append(values, chart.Value{
			Value: p.Value,
			Label: label,
			Style: chart.Style{FillColor: colorAt(cfg, i)},
		})
	}
	if len(values) == 0 {
		return ErrEmptyChart
	}

	pc := chart.PieChart{
		Title:  cfg.Title,
		Width:  r.Width,
		Height: r.Height,
		Values: values,
	}
	return pc.Render(chart.PNG, w)
}

// headroom pads an axis maximum so the tallest value is not clipped and a
// flat zero series still has a non-empty range.
func headroom(max float64) float64 {
	if max <= 0 {
		return 1
	}
	return max * 1.1
}

func barWidth(width, bars int) int {
	if bars == 0 {
		return 40
	}
	bw := width / (bars * 2)
	switch {
	case bw < 8:
		return 8
	case bw > 60:
		return 60
	}
	return bw
}
