package engine

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ============================================================================
// EXECUTOR: Dispatcher + Placeholder Resolution
// ============================================================================
// Entry point: Execute(spec, view, opts...)
//
// Pipeline:
//   1. Apply filters from QuerySpec → SubView
//   2. Group and aggregate (or bin, for distribution charts)
//   3. Dispatch to builder (chart / table / text)
//   4. Resolve reply template placeholders
//   5. Return Result
// ============================================================================

// Execute runs a QuerySpec against a RecordView and returns a render-ready Result.
func Execute(spec QuerySpec, view RecordView, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)
	log := cfg.Logger

	measure := spec.Measure
	if measure == "" {
		measure = cfg.DefaultMeasure
	}

	if view.Len() == 0 {
		return &Result{
			Success: true,
			Type:    "text",
			Title:   spec.Title,
			Reply:   "No data available to analyze.",
		}, nil
	}

	if spec.Intent == "chart" && spec.Visualize == "scatter" && spec.XMeasure == "" {
		return nil, fmt.Errorf("scatter chart %q: xMeasure is required", spec.Title)
	}

	log.Debug("executing query",
		zap.Int("records", view.Len()),
		zap.String("intent", spec.Intent),
		zap.String("visualize", spec.Visualize),
		zap.String("aggregation", spec.Aggregation),
		zap.String("measure", measure))

	// 1. Apply filters → SubView (zero-copy)
	filtered := ApplyFilters(view, spec.Filters)
	if filtered.Len() == 0 {
		return &Result{
			Success: true,
			Type:    "text",
			Title:   spec.Title,
			Reply:   "No records match the selected filters.",
		}, nil
	}
	log.Debug("filtered", zap.Int("kept", filtered.Len()), zap.Int("from", view.Len()))

	unit := cfg.unitFor(measure)
	result := &Result{
		Success:     true,
		Title:       spec.Title,
		DisplayUnit: unit,
	}

	// 2. Distribution charts bypass grouping.
	if spec.Intent == "chart" && (spec.Visualize == "histogram" || spec.Visualize == "scatter") {
		var chart *ChartConfig
		if spec.Visualize == "histogram" {
			chart = BuildHistogram(filtered, measure, spec.Bins, spec.Title)
		} else {
			chart = BuildScatter(filtered, spec.XMeasure, measure, spec.LabelBy, spec.Title)
		}
		if chart == nil {
			result.Type = "text"
			result.Reply = "Not enough data to generate a chart."
			return result, nil
		}
		applyAxisLabels(chart, spec)
		result.Type = "chart"
		result.ChartConfig = chart
		result.Reply = resolvePlaceholders(spec.Reply, spec.Aggregation, nil, filtered, measure, cfg)
		return result, nil
	}

	groups := GroupAndAggregate(filtered, spec.GroupBy, measure, spec.Aggregation, spec.SortBy, spec.Limit)

	// 3. Dispatch to builder
	switch spec.Intent {
	case "chart":
		result.Type = "chart"
		result.ChartConfig = BuildChart(spec, groups)
		if result.ChartConfig == nil {
			result.Type = "text"
			result.Reply = "Not enough data to generate a chart."
			return result, nil
		}

	case "table":
		result.Type = "table"
		result.TableData = BuildTable(spec, groups, filtered, measure, unit)

	default:
		result.Type = "text"
		result.TextData = buildText(spec, filtered, measure, cfg)
		if spec.Aggregation == "growth" && result.TextData.Growth != nil &&
			result.TextData.Growth.Direction == "insufficient data" {
			result.Reply = fmt.Sprintf("Only %s of data is selected. At least 2 months are needed to show a trend.",
				result.TextData.Period)
			return result, nil
		}
	}

	// 4. Resolve reply template placeholders
	result.Reply = resolvePlaceholders(spec.Reply, spec.Aggregation, groups, filtered, measure, cfg)

	return result, nil
}

func applyAxisLabels(chart *ChartConfig, spec QuerySpec) {
	if spec.XLabel != "" {
		chart.XAxis = spec.XLabel
	}
	if spec.YLabel != "" {
		chart.YAxis = spec.YLabel
	}
}

// ============================================================================
// PLACEHOLDER RESOLUTION
// ============================================================================

// resolvePlaceholders substitutes computed values into the reply template.
// {total} and {top_amount} follow the panel's aggregation; count panels print integers.
func resolvePlaceholders(template, aggregation string, groups []Group, view RecordView, measure string, cfg *config) string {
	if template == "" {
		return buildDefaultReply(view, measure, cfg)
	}

	total := SumMeasure(view, measure)
	count := view.Len()

	replacements := map[string]string{
		"{total}":    cfg.formatValue(total, measure, aggregation),
		"{count}":    FormatInt(count),
		"{period}":   DerivePeriod(view, cfg.PeriodDimension),
		"{currency}": cfg.Currency,
	}

	// Top group (highest value)
	if len(groups) > 0 {
		topGroup := groups[0]
		for _, g := range groups[1:] {
			if g.Value > topGroup.Value {
				topGroup = g
			}
		}
		replacements["{top_category}"] = topGroup.Label
		replacements["{top_amount}"] = cfg.formatValue(topGroup.Value, measure, aggregation)
	}

	if n := CountValid(view, measure); n > 0 {
		replacements["{avg}"] = cfg.formatValue(AvgMeasure(view, measure), measure, "")
		replacements["{max}"] = cfg.formatValue(MaxMeasure(view, measure), measure, "")
		replacements["{min}"] = cfg.formatValue(MinMeasure(view, measure), measure, "")
	}

	if usesGrowth(template) {
		if g := BuildGrowthText(view, measure, cfg.PeriodDimension).Growth; g != nil {
			replacements["{growth_percent}"] = fmt.Sprintf("%.1f%%", g.ChangePercent)
			replacements["{previous_period}"] = g.PreviousPeriod
			replacements["{latest_period}"] = g.LatestPeriod
			replacements["{direction}"] = g.Direction
		}
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	return stripUnresolvedPlaceholders(result)
}

func usesGrowth(template string) bool {
	for _, p := range []string{"{growth_percent}", "{previous_period}", "{latest_period}", "{direction}"} {
		if strings.Contains(template, p) {
			return true
		}
	}
	return false
}

// ============================================================================
// QUERYSPEC NORMALIZATION
// ============================================================================

// NormalizeQuerySpec applies deterministic rules to fix inconsistent specs.
func NormalizeQuerySpec(spec QuerySpec) QuerySpec {
	// "list" aggregation must be a table
	if spec.Aggregation == "list" && spec.Intent != "table" {
		spec.Intent = "table"
		spec.Visualize = "table"
	}

	// Grouped charts need a groupBy dimension; distribution charts do not.
	distribution := spec.Visualize == "histogram" || spec.Visualize == "scatter"
	if spec.Intent == "chart" && len(spec.GroupBy) == 0 && !distribution {
		spec.Intent = "text"
		spec.Visualize = "text"
	}

	// max/min with no groupBy → text
	if (spec.Aggregation == "max" || spec.Aggregation == "min") && len(spec.GroupBy) == 0 && !distribution {
		spec.Intent = "text"
		spec.Visualize = "text"
	}

	return spec
}

// ============================================================================
// INTERNAL HELPERS
// ============================================================================

func buildDefaultReply(view RecordView, measure string, cfg *config) string {
	if view.Len() == 0 {
		return "No matching records found."
	}
	return fmt.Sprintf("Found %s records totalling %s.",
		FormatInt(view.Len()), cfg.formatValue(SumMeasure(view, measure), measure, ""))
}

var placeholderRegex = regexp.MustCompile(`\{[a-z_]+\}`)

func stripUnresolvedPlaceholders(text string) string {
	if !placeholderRegex.MatchString(text) {
		return text
	}
	cleaned := placeholderRegex.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, "  ", " ")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, " .—-–")
	if cleaned == "" {
		return text
	}
	return cleaned
}
