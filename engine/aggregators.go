package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ============================================================================
// AGGREGATORS: Grouping, Aggregation, and Sorting via RecordView
// ============================================================================
// Grouping produces SubViews (index lists into parent view).
// NaN measure values are missing and skipped by every aggregate.
// ============================================================================

// GroupAndAggregate is the main entry point for the aggregation pipeline.
// Pipeline: group → aggregate → sort → limit.
func GroupAndAggregate(
	view RecordView,
	groupBy []string,
	measure string,
	aggregation string,
	sortBy string,
	limit int,
) []Group {
	if view.Len() == 0 {
		return nil
	}

	// 1. Group
	var groups []Group
	switch len(groupBy) {
	case 0:
		groups = []Group{{
			Key:   "all",
			Label: "Total",
			View:  view,
		}}
	case 1:
		groups = groupBySingle(view, groupBy[0])
	default:
		groups = groupByMulti(view, groupBy)
	}

	// 2. Aggregate
	for i := range groups {
		aggregateGroup(&groups[i], measure, aggregation)
		for j := range groups[i].SubGroups {
			aggregateGroup(&groups[i].SubGroups[j], measure, aggregation)
		}
	}

	// 3. Sort
	SortGroups(groups, sortBy)

	// 4. Limit
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}

	return groups
}

// ============================================================================
// GROUPING
// ============================================================================

// groupBySingle buckets record indices by one dimension in first-seen order.
// Records with an empty value are left out.
func groupBySingle(view RecordView, dimension string) []Group {
	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := view.Dimension(i, dimension)
		if key == "" {
			continue
		}
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, Group{
			Key:   key,
			Label: key,
			View:  newSubView(view, grouped[key]),
		})
	}
	return groups
}

func groupByMulti(view RecordView, dimensions []string) []Group {
	primaryGroups := groupBySingle(view, dimensions[0])
	for i := range primaryGroups {
		primaryGroups[i].SubGroups = groupBySingle(primaryGroups[i].View, dimensions[1])
	}
	return primaryGroups
}

// ============================================================================
// AGGREGATION
// ============================================================================

func aggregateGroup(group *Group, measure string, aggregation string) {
	group.Count = group.View.Len()
	if group.Count == 0 {
		return
	}

	switch aggregation {
	case "count":
		group.Value = float64(group.Count)
	case "avg":
		group.Value = AvgMeasure(group.View, measure)
	case "max":
		group.Value = MaxMeasure(group.View, measure)
	case "min":
		group.Value = MinMeasure(group.View, measure)
	case "none":
		// pass through
	default: // sum, list, growth
		group.Value = SumMeasure(group.View, measure)
	}
}

// SumMeasure sums a named measure across a view, skipping NaN.
func SumMeasure(view RecordView, measure string) float64 {
	var total float64
	for i := 0; i < view.Len(); i++ {
		if v := view.Measure(i, measure); !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// CountValid returns how many records carry a non-NaN value for measure.
func CountValid(view RecordView, measure string) int {
	n := 0
	for i := 0; i < view.Len(); i++ {
		if !math.IsNaN(view.Measure(i, measure)) {
			n++
		}
	}
	return n
}

// ValidValues collects the non-NaN values of a measure.
func ValidValues(view RecordView, measure string) []float64 {
	out := make([]float64, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		if v := view.Measure(i, measure); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// AvgMeasure computes the mean of a named measure over valid values.
func AvgMeasure(view RecordView, measure string) float64 {
	n := CountValid(view, measure)
	if n == 0 {
		return 0
	}
	return SumMeasure(view, measure) / float64(n)
}

// MaxMeasure returns the largest valid value of a named measure.
func MaxMeasure(view RecordView, measure string) float64 {
	m, found := math.Inf(-1), false
	for i := 0; i < view.Len(); i++ {
		v := view.Measure(i, measure)
		if math.IsNaN(v) {
			continue
		}
		if !found || v > m {
			m, found = v, true
		}
	}
	if !found {
		return 0
	}
	return m
}

// MinMeasure returns the smallest valid value of a named measure.
func MinMeasure(view RecordView, measure string) float64 {
	m, found := math.Inf(1), false
	for i := 0; i < view.Len(); i++ {
		v := view.Measure(i, measure)
		if math.IsNaN(v) {
			continue
		}
		if !found || v < m {
			m, found = v, true
		}
	}
	if !found {
		return 0
	}
	return m
}

// ============================================================================
// SORTING
// ============================================================================

// SortGroups sorts aggregate groups by the specified sort mode.
// Sorting is stable so equal values keep first-seen order.
func SortGroups(groups []Group, sortBy string) {
	switch sortBy {
	case "value_desc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case "value_asc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	case "chronological", "date_asc":
		sort.SliceStable(groups, func(i, j int) bool { return parseSortableDate(groups[i].Key) < parseSortableDate(groups[j].Key) })
	case "reverse_chronological", "date_desc":
		sort.SliceStable(groups, func(i, j int) bool { return parseSortableDate(groups[i].Key) > parseSortableDate(groups[j].Key) })
	case "label_asc", "alpha_asc":
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) < strings.ToLower(groups[j].Key) })
	case "label_desc":
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) > strings.ToLower(groups[j].Key) })
	default:
		// preserve grouping order
	}
}

var sortableLayouts = []string{"2006-01-02", "2006-01", "Jan-2006", "2006"}

// parseSortableDate converts a period key to a sortable int (yyyymmdd).
// Unknown keys sort first.
func parseSortableDate(key string) int {
	for _, layout := range sortableLayouts {
		if t, err := time.Parse(layout, key); err == nil {
			return t.Year()*10000 + int(t.Month())*100 + t.Day()
		}
	}
	return 0
}

// ParseMonthOrder converts "2017-01" (or "Jan-2017") to a sortable int (201701).
func ParseMonthOrder(monthStr string) int {
	for _, layout := range []string{"2006-01", "Jan-2006"} {
		if t, err := time.Parse(layout, monthStr); err == nil {
			return t.Year()*100 + int(t.Month())
		}
	}
	return 0
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatCurrency formats an amount with currency prefix and comma separators.
func FormatCurrency(amount float64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	cents := int64(math.Round(amount * 100))
	s := fmt.Sprintf("%s.%02d", groupThousands(cents/100), cents%100)
	if currency != "" {
		s = currency + " " + s
	}
	if negative {
		s = "-" + s
	}
	return s
}

// FormatNumber formats a value with two decimals and an optional unit suffix.
func FormatNumber(v float64, unit string) string {
	s := fmt.Sprintf("%.2f", v)
	if unit != "" {
		s += " " + unit
	}
	return s
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	return groupThousands(int64(n))
}

func groupThousands(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", groupThousands(n/1000), n%1000)
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UniqueValues returns distinct non-empty values for a dimension across a view.
func UniqueValues(view RecordView, dimension string) []string {
	seen := make(map[string]bool)
	var result []string
	for i := 0; i < view.Len(); i++ {
		val := view.Dimension(i, dimension)
		if val != "" && !seen[val] {
			seen[val] = true
			result = append(result, val)
		}
	}
	return result
}

// LabelForDimension turns a snake_case key into a title: "order_month" → "Order Month".
func LabelForDimension(dimension string) string {
	words := strings.Fields(strings.ReplaceAll(dimension, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// LabelForAggregation returns a human-readable label for an aggregation type.
func LabelForAggregation(aggregation string) string {
	switch aggregation {
	case "sum":
		return "Amount"
	case "count":
		return "Count"
	case "avg":
		return "Average"
	case "max":
		return "Maximum"
	case "min":
		return "Minimum"
	default:
		return "Value"
	}
}
