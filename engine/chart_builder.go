package engine

import "sort"

// ============================================================================
// CHART BUILDER: Produces ChartConfig from QuerySpec + Groups
// ============================================================================

// Default color palette for chart series.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// BuildChart produces a ChartConfig from a QuerySpec and aggregated groups.
func BuildChart(spec QuerySpec, groups []Group) *ChartConfig {
	if len(groups) == 0 {
		return nil
	}

	chartType := spec.Visualize
	if chartType == "" {
		chartType = "bar"
	}

	config := &ChartConfig{
		ChartType:  chartType,
		Title:      spec.Title,
		ShowLegend: true,
		ShowGrid:   chartType != "pie",
	}

	config.XAxis = spec.XLabel
	if config.XAxis == "" && len(spec.GroupBy) > 0 {
		config.XAxis = LabelForDimension(spec.GroupBy[0])
	}
	config.YAxis = spec.YLabel
	if config.YAxis == "" {
		config.YAxis = LabelForAggregation(spec.Aggregation)
	}

	if len(spec.GroupBy) >= 2 && hasSubGroups(groups) {
		config.Series = buildMultiSeries(groups)
	} else {
		config.Series = buildSingleSeries(groups, spec.Title)
	}

	if chartType == "pie" {
		for i := range config.Series {
			assignShares(config.Series[i].Data)
		}
	}

	config.Colors = assignColors(len(config.Series))
	return config
}

// ============================================================================
// SERIES BUILDERS
// ============================================================================

func buildSingleSeries(groups []Group, seriesName string) []ChartSeries {
	if seriesName == "" {
		seriesName = "Value"
	}

	points := make([]ChartPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, ChartPoint{
			Label: g.Label,
			Value: RoundTo2(g.Value),
		})
	}

	return []ChartSeries{{
		Name: seriesName,
		Data: points,
	}}
}

func buildMultiSeries(groups []Group) []ChartSeries {
	subKeySet := make(map[string]bool)
	for _, g := range groups {
		for _, sg := range g.SubGroups {
			subKeySet[sg.Key] = true
		}
	}

	subKeys := make([]string, 0, len(subKeySet))
	for k := range subKeySet {
		subKeys = append(subKeys, k)
	}
	sort.Strings(subKeys)

	series := make([]ChartSeries, 0, len(subKeys))
	for i, key := range subKeys {
		points := make([]ChartPoint, 0, len(groups))
		for _, g := range groups {
			var v float64
			for _, sg := range g.SubGroups {
				if sg.Key == key {
					v = sg.Value
					break
				}
			}
			points = append(points, ChartPoint{Label: g.Label, Value: RoundTo2(v)})
		}
		series = append(series, ChartSeries{
			Name:  key,
			Data:  points,
			Color: defaultColors[i%len(defaultColors)],
		})
	}

	return series
}

// assignShares sets each point's percent of the series total (pie autopct).
func assignShares(points []ChartPoint) {
	var total float64
	for _, p := range points {
		total += p.Value
	}
	if total == 0 {
		return
	}
	for i := range points {
		points[i].Share = RoundTo2(points[i].Value / total * 100)
	}
}

func hasSubGroups(groups []Group) bool {
	for _, g := range groups {
		if len(g.SubGroups) > 0 {
			return true
		}
	}
	return false
}

func assignColors(count int) []string {
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = defaultColors[i%len(defaultColors)]
	}
	return colors
}
