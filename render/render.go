// Package render draws engine charts as PNG images.
//
// Category charts (bar, stacked_bar, line, area, pie) go through go-chart;
// distribution charts (histogram, scatter) go through gonum/plot.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/spektr-org/ecomdash/engine"
)

// ContentType of everything Render writes.
const ContentType = "image/png"

var (
	// ErrUnsupportedChart is returned for a chart type with no renderer.
	ErrUnsupportedChart = errors.New("unsupported chart type")
	// ErrEmptyChart is returned when a chart has no points to draw.
	ErrEmptyChart = errors.New("chart has no data")
)

// Default image size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 450
)

// Renderer writes charts at a fixed pixel size.
type Renderer struct {
	Width  int
	Height int
}

// New returns a Renderer, falling back to the default size for non-positive values.
func New(width, height int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Renderer{Width: width, Height: height}
}

// Render writes cfg to w as PNG.
func (r *Renderer) Render(cfg *engine.ChartConfig, w io.Writer) error {
	if cfg == nil || cfg.PointCount() == 0 {
		return ErrEmptyChart
	}

	var err error
	switch cfg.ChartType {
	case "bar", "":
		err = r.bar(cfg, w)
	case "stacked_bar":
		err = r.stackedBar(cfg, w)
	case "line":
		err = r.line(cfg, w, false)
	case "area":
		err = r.line(cfg, w, true)
	case "pie":
		err = r.pie(cfg, w)
	case "histogram":
		err = r.histogram(cfg, w)
	case "scatter":
		err = r.scatter(cfg, w)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedChart, cfg.ChartType)
	}
	if err != nil {
		return fmt.Errorf("render %s chart %q: %w", cfg.ChartType, cfg.Title, err)
	}
	return nil
}

// Supported reports whether Render can draw chartType.
func Supported(chartType string) bool {
	switch chartType {
	case "bar", "stacked_bar", "line", "area", "pie", "histogram", "scatter":
		return true
	}
	return false
}

// colorAt picks the chart's i-th color, cycling, as a go-chart color.
// drawing.Color also satisfies image/color.Color for gonum/plot.
func colorAt(cfg *engine.ChartConfig, i int) drawing.Color {
	if len(cfg.Colors) == 0 {
		return drawing.ColorFromHex("4F46E5")
	}
	return drawing.ColorFromHex(strings.TrimPrefix(cfg.Colors[i%len(cfg.Colors)], "#"))
}

// labelStride thins category ticks so at most max labels are printed.
func labelStride(n, max int) int {
	if n <= max || max <= 0 {
		return 1
	}
	return (n + max - 1) / max
}
