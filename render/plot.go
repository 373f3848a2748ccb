package render

import (
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/spektr-org/ecomdash/engine"
)

// ============================================================================
// GONUM/PLOT: histogram (+ density line) and scatter
// ============================================================================

// pngDPI is the resolution gonum/plot uses for PNG output.
const pngDPI = 96

func (r *Renderer) size() (vg.Length, vg.Length) {
	return vg.Length(r.Width) * vg.Inch / pngDPI, vg.Length(r.Height) * vg.Inch / pngDPI
}

func (r *Renderer) save(p *plot.Plot, w io.Writer) error {
	width, height := r.size()
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func newPlot(cfg *engine.ChartConfig) *plot.Plot {
	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = cfg.XAxis
	p.Y.Label.Text = cfg.YAxis
	if cfg.ShowGrid {
		p.Add(plotter.NewGrid())
	}
	return p
}

func (r *Renderer) histogram(cfg *engine.ChartConfig, w io.Writer) error {
	p := newPlot(cfg)
	counts := cfg.Series[0].Data

	values := make(plotter.Values, len(counts))
	labels := make([]string, len(counts))
	stride := labelStride(len(counts), 12)
	for i, pt := range counts {
		values[i] = pt.Value
		if i%stride == 0 {
			labels[i] = pt.Label
		}
	}

	width, _ := r.size()
	barW := width * 0.8 / vg.Length(len(counts)+1)
	bars, err := plotter.NewBarChart(values, barW)
	if err != nil {
		return err
	}
	bars.Color = colorAt(cfg, 0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	if len(cfg.Series) > 1 {
		density := cfg.Series[1].Data
		xys := make(plotter.XYs, len(density))
		for i, pt := range density {
			xys[i].X = float64(i)
			xys[i].Y = pt.Value
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = colorAt(cfg, 1)
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(cfg.Series[0].Name, bars)
		p.Legend.Add(cfg.Series[1].Name, line)
		p.Legend.Top = true
	}

	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 0.6
	p.X.Tick.Label.XAlign = draw.XRight
	return r.save(p, w)
}

func (r *Renderer) scatter(cfg *engine.ChartConfig, w io.Writer) error {
	p := newPlot(cfg)
	for si, s := range cfg.Series {
		xys := make(plotter.XYs, len(s.Data))
		for i, pt := range s.Data {
			xys[i].X = pt.X
			xys[i].Y = pt.Value
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = colorAt(cfg, si)
		sc.GlyphStyle.Radius = vg.Points(2.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		if cfg.ShowLegend {
			p.Legend.Add(s.Name, sc)
		}
	}
	return r.save(p, w)
}
