package engine

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ============================================================================
// DISTRIBUTIONS: histogram (+ KDE) and scatter charts
// ============================================================================
// These read raw measure values instead of groups, so they sit beside
// BuildChart rather than inside the group pipeline.
// ============================================================================

// BuildHistogram bins the valid values of measure into equal-width bins over
// [min, max] and returns a "histogram" chart. The first series holds counts,
// the optional second series ("density") a Gaussian KDE scaled to counts.
// Returns nil when there are no valid values.
func BuildHistogram(view RecordView, measure string, bins int, title string) *ChartConfig {
	values := ValidValues(view, measure)
	if len(values) == 0 {
		return nil
	}
	if bins <= 0 {
		bins = 10
	}
	sort.Float64s(values)

	lo, hi := values[0], values[len(values)-1]
	if lo == hi {
		bins = 1
	}
	// stat.Histogram wants x < last divider; nudge it so max lands in the last bin.
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, values, nil)

	width := dividers[1] - dividers[0]
	countPoints := make([]ChartPoint, bins)
	for i := 0; i < bins; i++ {
		countPoints[i] = ChartPoint{
			Label: fmt.Sprintf("%.1f–%.1f", dividers[i], dividers[i+1]),
			X:     RoundTo2((dividers[i] + dividers[i+1]) / 2),
			Value: counts[i],
		}
	}

	cfg := &ChartConfig{
		ChartType: "histogram",
		Title:     title,
		XAxis:     LabelForDimension(measure),
		YAxis:     "Count",
		Series:    []ChartSeries{{Name: "count", Data: countPoints}},
		ShowGrid:  true,
	}

	if density := kdeSeries(values, countPoints, width); density != nil {
		cfg.Series = append(cfg.Series, *density)
		cfg.ShowLegend = true
	}
	cfg.Colors = assignColors(len(cfg.Series))
	return cfg
}

// kdeSeries evaluates a Gaussian KDE at the bin centres.
// Bandwidth follows Scott's rule: σ · n^(-1/5).
func kdeSeries(sorted []float64, at []ChartPoint, binWidth float64) *ChartSeries {
	n := float64(len(sorted))
	if len(sorted) < 2 || binWidth <= 0 {
		return nil
	}
	sigma := stat.StdDev(sorted, nil)
	if sigma == 0 || math.IsNaN(sigma) {
		return nil
	}
	h := sigma * math.Pow(n, -0.2)
	norm := 1 / (n * h * math.Sqrt(2*math.Pi))

	points := make([]ChartPoint, len(at))
	for i, p := range at {
		var sum float64
		for _, x := range sorted {
			u := (p.X - x) / h
			sum += math.Exp(-0.5 * u * u)
		}
		// density × n × binWidth puts the curve on the count axis
		points[i] = ChartPoint{
			Label: p.Label,
			X:     p.X,
			Value: RoundTo2(sum * norm * n * binWidth),
		}
	}
	return &ChartSeries{Name: "density", Data: points}
}

// BuildScatter pairs xMeasure and yMeasure per record into a "scatter" chart.
// Records missing either value are skipped. labelDim names each point.
// Returns nil when no record has both values.
func BuildScatter(view RecordView, xMeasure, yMeasure, labelDim, title string) *ChartConfig {
	points := make([]ChartPoint, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		x, y := view.Measure(i, xMeasure), view.Measure(i, yMeasure)
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		points = append(points, ChartPoint{
			Label: view.Dimension(i, labelDim),
			X:     x,
			Value: RoundTo2(y),
		})
	}
	if len(points) == 0 {
		return nil
	}

	return &ChartConfig{
		ChartType: "scatter",
		Title:     title,
		XAxis:     LabelForDimension(xMeasure),
		YAxis:     LabelForDimension(yMeasure),
		Series:    []ChartSeries{{Name: title, Data: points}},
		Colors:    assignColors(1),
		ShowGrid:  true,
	}
}
