package engine

import (
	"fmt"
	"math"
	"sort"
)

// ============================================================================
// TEXT BUILDER: Produces TextData for single-value panels
// ============================================================================

// buildText produces text response data from filtered records.
func buildText(spec QuerySpec, view RecordView, measure string, cfg *config) *TextData {
	unit := cfg.unitFor(measure)
	if view.Len() == 0 {
		return &TextData{
			Value:  "0",
			Unit:   unit,
			Period: DerivePeriod(view, cfg.PeriodDimension),
		}
	}

	var value float64
	switch spec.Aggregation {
	case "count":
		value = float64(view.Len())
	case "avg":
		value = AvgMeasure(view, measure)
	case "max":
		value = MaxMeasure(view, measure)
	case "min":
		value = MinMeasure(view, measure)
	case "growth":
		return BuildGrowthText(view, measure, cfg.PeriodDimension)
	default:
		value = SumMeasure(view, measure)
	}

	return &TextData{
		Value:    cfg.formatValue(value, measure, spec.Aggregation),
		RawValue: value,
		Unit:     unit,
		Period:   DerivePeriod(view, cfg.PeriodDimension),
		Count:    view.Len(),
	}
}

// ============================================================================
// GROWTH BUILDER
// ============================================================================

// BuildGrowthText reports period-over-period change of a measure. The
// headline compares the last two periods; Periods carries every step.
// periodDim must hold "2006-01" (or "Jan-2006") month keys.
func BuildGrowthText(view RecordView, measure string, periodDim string) *TextData {
	if view.Len() == 0 {
		return &TextData{Value: "No data", Period: "No data"}
	}

	periods := periodTotals(view, measure, periodDim)
	if len(periods) < 2 {
		total := SumMeasure(view, measure)
		period := DerivePeriod(view, periodDim)
		return &TextData{
			Value:    FormatNumber(total, ""),
			RawValue: total,
			Period:   period,
			Count:    view.Len(),
			Growth: &GrowthData{
				PreviousValue:  total,
				LatestValue:    total,
				PreviousPeriod: period,
				LatestPeriod:   period,
				Direction:      "insufficient data",
				Periods:        periods,
			},
		}
	}

	prev, last := periods[len(periods)-2], periods[len(periods)-1]
	pct := last.ChangePercent
	direction := growthDirection(pct)

	value := "→ No change"
	switch direction {
	case "increased":
		value = fmt.Sprintf("↑ %.1f%%", math.Abs(pct))
	case "decreased":
		value = fmt.Sprintf("↓ %.1f%%", math.Abs(pct))
	}

	return &TextData{
		Value:    value,
		RawValue: pct,
		Period:   fmt.Sprintf("%s – %s", prev.Period, last.Period),
		Count:    view.Len(),
		Growth: &GrowthData{
			PreviousValue:  prev.Value,
			LatestValue:    last.Value,
			PreviousPeriod: prev.Period,
			LatestPeriod:   last.Period,
			ChangeAmount:   last.Value - prev.Value,
			ChangePercent:  pct,
			Direction:      direction,
			Periods:        periods,
		},
	}
}

// periodTotals sums measure per period, chronologically, skipping NaN
// values and empty period keys.
func periodTotals(view RecordView, measure, periodDim string) []PeriodChange {
	totals := make(map[string]float64)
	for i := 0; i < view.Len(); i++ {
		p := view.Dimension(i, periodDim)
		if p == "" {
			continue
		}
		v := view.Measure(i, measure)
		if math.IsNaN(v) {
			v = 0
		}
		totals[p] += v
	}

	out := make([]PeriodChange, 0, len(totals))
	for p, v := range totals {
		out = append(out, PeriodChange{Period: p, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := ParseMonthOrder(out[i].Period), ParseMonthOrder(out[j].Period)
		if oi != oj {
			return oi < oj
		}
		return out[i].Period < out[j].Period
	})
	for i := 1; i < len(out); i++ {
		if prev := out[i-1].Value; prev != 0 {
			out[i].ChangePercent = (out[i].Value - prev) / prev * 100
		}
	}
	return out
}

// growthDirection treats moves within half a percent as flat.
func growthDirection(pct float64) string {
	switch {
	case pct > 0.5:
		return "increased"
	case pct < -0.5:
		return "decreased"
	default:
		return "unchanged"
	}
}

// ============================================================================
// PERIOD HELPER
// ============================================================================

// DerivePeriod builds a human-readable period string from a view's month keys.
func DerivePeriod(view RecordView, periodDim string) string {
	if view.Len() == 0 {
		return "No data"
	}

	var earliest, latest string
	var earliestOrder, latestOrder int
	for i := 0; i < view.Len(); i++ {
		m := view.Dimension(i, periodDim)
		if m == "" {
			continue
		}
		order := ParseMonthOrder(m)
		if earliest == "" || order < earliestOrder {
			earliest, earliestOrder = m, order
		}
		if latest == "" || order > latestOrder {
			latest, latestOrder = m, order
		}
	}

	switch {
	case earliest == "":
		return "All time"
	case earliest == latest:
		return earliest
	default:
		return fmt.Sprintf("%s – %s", earliest, latest)
	}
}
