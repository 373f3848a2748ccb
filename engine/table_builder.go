package engine

import (
	"fmt"
	"math"
	"strconv"
)

// ============================================================================
// TABLE BUILDER: TableData from QuerySpec + Groups
// ============================================================================
// List tables take their columns from view.DimensionKeys(). Aggregated tables
// are group, value, count and share of the value total.
// ============================================================================

// BuildTable produces a TableData. unit is the display unit of the summary
// total (a currency code or "").
func BuildTable(spec QuerySpec, groups []Group, view RecordView, measure string, unit string) *TableData {
	if spec.Aggregation == "list" {
		return buildListTable(spec, view, measure, unit)
	}
	return buildAggregatedTable(spec, groups, unit)
}

func emptyTable(title string) *TableData {
	return &TableData{Title: title, Columns: []Column{}, Rows: [][]string{}}
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ============================================================================
// LIST TABLE
// ============================================================================

func buildListTable(spec QuerySpec, view RecordView, measure string, unit string) *TableData {
	if view == nil || view.Len() == 0 {
		return emptyTable(spec.Title)
	}

	keys := view.DimensionKeys()
	columns := make([]Column, 0, len(keys)+1)
	for _, key := range keys {
		columns = append(columns, Column{Key: key, Label: LabelForDimension(key), Type: "text", Align: "left"})
	}
	columns = append(columns, Column{Key: measure, Label: LabelForDimension(measure), Type: "number", Align: "right"})

	rows := make([][]string, view.Len())
	for i := range rows {
		row := make([]string, 0, len(columns))
		for _, key := range keys {
			row = append(row, view.Dimension(i, key))
		}
		rows[i] = append(row, formatCell(view.Measure(i, measure)))
	}

	return &TableData{
		Title:   spec.Title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label:  fmt.Sprintf("Total (%s records)", FormatInt(view.Len())),
			Values: map[string]string{measure: FormatCurrency(SumMeasure(view, measure), unit)},
		},
	}
}

// ============================================================================
// AGGREGATED TABLE
// ============================================================================

func buildAggregatedTable(spec QuerySpec, groups []Group, unit string) *TableData {
	if len(groups) == 0 {
		return emptyTable(spec.Title)
	}

	groupLabel := "Group"
	if len(spec.GroupBy) > 0 {
		groupLabel = LabelForDimension(spec.GroupBy[0])
	}

	var totalValue float64
	var totalCount int
	for _, g := range groups {
		totalValue += g.Value
		totalCount += g.Count
	}

	rows := make([][]string, len(groups))
	for i, g := range groups {
		share := 0.0
		if totalValue != 0 {
			share = g.Value / totalValue * 100
		}
		rows[i] = []string{g.Label, formatCell(g.Value), strconv.Itoa(g.Count), strconv.FormatFloat(share, 'f', 1, 64)}
	}

	total := FormatCurrency(totalValue, unit)
	if spec.Aggregation == "count" {
		total = FormatInt(int(totalValue))
	}

	return &TableData{
		Title: spec.Title,
		Columns: []Column{
			{Key: "group", Label: groupLabel, Type: "text", Align: "left"},
			{Key: "value", Label: LabelForAggregation(spec.Aggregation), Type: "number", Align: "right"},
			{Key: "count", Label: "Count", Type: "number", Align: "center"},
			{Key: "share", Label: "Share %", Type: "number", Align: "right"},
		},
		Rows: rows,
		Summary: &Summary{
			Label: "Total",
			Values: map[string]string{
				"value": total,
				"count": FormatInt(totalCount),
				"share": "100.0",
			},
		},
	}
}
