package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ============================================================================
// FIXTURES
// ============================================================================

func rec(month, date, payment, category string, value, days float64) Record {
	return Record{
		Dimensions: map[string]string{
			"order_month":           month,
			"order_date":            date,
			"payment_type":          payment,
			"product_category_name": category,
		},
		Measures: map[string]float64{
			"payment_value": value,
			"delivery_days": days,
			"record_count":  1,
		},
	}
}

func sampleView() RecordView {
	return NewSliceView([]Record{
		rec("2018-01", "2018-01-03", "credit_card", "beleza_saude", 100, 5),
		rec("2018-01", "2018-01-09", "boleto", "esporte_lazer", 50, 10),
		rec("2018-02", "2018-02-01", "credit_card", "beleza_saude", 30, math.NaN()),
		rec("2018-02", "2018-02-14", "credit_card", "", 20, 3),
		rec("2018-03", "2018-03-30", "voucher", "moveis_decoracao", 200, 12),
	})
}

// ============================================================================
// FILTER TESTS
// ============================================================================

func TestApplyFiltersDimensionsAndRanges(t *testing.T) {
	v := sampleView()

	byPayment := ApplyFilters(v, Filters{Dimensions: map[string][]string{"payment_type": {"CREDIT_CARD", "voucher"}}})
	assert.Equal(t, 4, byPayment.Len(), "values are OR-combined and case-insensitive")

	byRange := ApplyFilters(v, Filters{Ranges: map[string]Range{"order_date": {From: "2018-01-09", To: "2018-02-14"}}})
	assert.Equal(t, 3, byRange.Len(), "bounds are inclusive")

	both := ApplyFilters(v, Filters{
		Dimensions: map[string][]string{"payment_type": {"credit_card"}},
		Ranges:     map[string]Range{"order_date": {From: "2018-02-01"}},
	})
	assert.Equal(t, 2, both.Len(), "dimensions and ranges are AND-combined")

	assert.Same(t, v, ApplyFilters(v, Filters{Ranges: map[string]Range{"order_date": {}}}), "open range is no filter")
}

func TestRangeContains(t *testing.T) {
	r := Range{From: "2018-01", To: "2018-03"}
	assert.True(t, r.Contains("2018-01"))
	assert.True(t, r.Contains("2018-03"))
	assert.False(t, r.Contains("2017-12"))
	assert.True(t, Range{}.IsOpen())
	assert.True(t, Filters{Ranges: map[string]Range{"x": r}}.HasFilter("x"))
	assert.False(t, Filters{}.HasFilter("x"))
}

// ============================================================================
// AGGREGATION TESTS
// ============================================================================

func TestGroupAndAggregateSkipsEmptyKeysAndNaN(t *testing.T) {
	v := sampleView()

	groups := GroupAndAggregate(v, []string{"product_category_name"}, "record_count", "count", "value_desc", 0)
	require.Len(t, groups, 3, "empty category is not a group")
	assert.Equal(t, "beleza_saude", groups[0].Key)
	assert.Equal(t, 2.0, groups[0].Value)

	avg := GroupAndAggregate(v, []string{"payment_type"}, "delivery_days", "avg", "alpha_asc", 0)
	require.Len(t, avg, 3)
	assert.Equal(t, "boleto", avg[0].Key)
	assert.Equal(t, "credit_card", avg[1].Key)
	assert.Equal(t, 4.0, avg[1].Value, "NaN is skipped: (5+3)/2")
	assert.Equal(t, 3, avg[1].Count)
}

func TestGroupAndAggregateChronologicalAndLimit(t *testing.T) {
	v := NewSliceView([]Record{
		rec("2018-03", "", "", "", 1, 0),
		rec("2017-12", "", "", "", 1, 0),
		rec("2018-01", "", "", "", 1, 0),
	})
	groups := GroupAndAggregate(v, []string{"order_month"}, "payment_value", "sum", "chronological", 2)
	require.Len(t, groups, 2)
	assert.Equal(t, "2017-12", groups[0].Key)
	assert.Equal(t, "2018-01", groups[1].Key)
}

func TestMeasureHelpers(t *testing.T) {
	v := sampleView()
	assert.Equal(t, 30.0, SumMeasure(v, "delivery_days"))
	assert.Equal(t, 4, CountValid(v, "delivery_days"))
	assert.Equal(t, 7.5, AvgMeasure(v, "delivery_days"))
	assert.Equal(t, 12.0, MaxMeasure(v, "delivery_days"))
	assert.Equal(t, 3.0, MinMeasure(v, "delivery_days"))

	empty := NewSliceView(nil)
	assert.Equal(t, 0.0, AvgMeasure(empty, "delivery_days"))
	assert.Equal(t, 0.0, MaxMeasure(empty, "delivery_days"))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "BRL 1,234,567.89", FormatCurrency(1234567.891, "BRL"))
	assert.Equal(t, "-BRL 5.00", FormatCurrency(-5, "BRL"))
	assert.Equal(t, "0.10", FormatCurrency(0.1, ""))
	assert.Equal(t, "12,345", FormatInt(12345))
	assert.Equal(t, "-1,000", FormatInt(-1000))
	assert.Equal(t, "12.50 days", FormatNumber(12.5, "days"))
	assert.Equal(t, "Product Category Name", LabelForDimension("product_category_name"))
	assert.Equal(t, 201801, ParseMonthOrder("2018-01"))
	assert.Equal(t, 201801, ParseMonthOrder("Jan-2018"))
}

// ============================================================================
// BUILDER TESTS
// ============================================================================

func TestBuildChartPieShares(t *testing.T) {
	groups := []Group{{Key: "a", Label: "a", Value: 30}, {Key: "b", Label: "b", Value: 10}}
	cfg := BuildChart(QuerySpec{Visualize: "pie", GroupBy: []string{"payment_type"}, Aggregation: "count"}, groups)
	require.NotNil(t, cfg)
	require.Len(t, cfg.Series, 1)
	assert.Equal(t, 75.0, cfg.Series[0].Data[0].Share)
	assert.Equal(t, 25.0, cfg.Series[0].Data[1].Share)
	assert.False(t, cfg.ShowGrid)
	assert.Equal(t, "Payment Type", cfg.XAxis)
	assert.Equal(t, "Count", cfg.YAxis)
}

func TestBuildChartMultiSeriesIsDeterministic(t *testing.T) {
	v := sampleView()
	spec := QuerySpec{Intent: "chart", Visualize: "stacked_bar", GroupBy: []string{"order_month", "payment_type"}, Aggregation: "count", SortBy: "chronological"}
	groups := GroupAndAggregate(v, spec.GroupBy, "record_count", "count", spec.SortBy, 0)
	cfg := BuildChart(spec, groups)
	require.NotNil(t, cfg)
	names := make([]string, len(cfg.Series))
	for i, s := range cfg.Series {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"boleto", "credit_card", "voucher"}, names)
	assert.Equal(t, 3, len(cfg.Series[1].Data))
	assert.Equal(t, 1.0, cfg.Series[1].Data[0].Value, "2018-01 credit_card")
	assert.Equal(t, 2.0, cfg.Series[1].Data[1].Value, "2018-02 credit_card")
}

func TestBuildHistogram(t *testing.T) {
	v := NewSliceView([]Record{
		{Measures: map[string]float64{"x": 0}},
		{Measures: map[string]float64{"x": 1}},
		{Measures: map[string]float64{"x": 2}},
		{Measures: map[string]float64{"x": 3}},
		{Measures: map[string]float64{"x": 4}},
		{Measures: map[string]float64{"x": math.NaN()}},
	})
	cfg := BuildHistogram(v, "x", 2, "X")
	require.NotNil(t, cfg)
	assert.Equal(t, "histogram", cfg.ChartType)
	require.Len(t, cfg.Series, 2)

	counts := cfg.Series[0].Data
	require.Len(t, counts, 2)
	assert.Equal(t, 2.0, counts[0].Value)
	assert.Equal(t, 3.0, counts[1].Value, "max lands in the last bin")
	assert.Equal(t, 1.0, counts[0].X)
	assert.Equal(t, 3.0, counts[1].X)
	assert.Equal(t, "0.0–2.0", counts[0].Label)

	density := cfg.Series[1]
	assert.Equal(t, "density", density.Name)
	require.Len(t, density.Data, 2)
	assert.Greater(t, density.Data[0].Value, 0.0)
}

func TestBuildHistogramEdgeCases(t *testing.T) {
	none := NewSliceView([]Record{{Measures: map[string]float64{"x": math.NaN()}}})
	assert.Nil(t, BuildHistogram(none, "x", 10, ""))

	same := NewSliceView([]Record{
		{Measures: map[string]float64{"x": 5}},
		{Measures: map[string]float64{"x": 5}},
		{Measures: map[string]float64{"x": 5}},
	})
	cfg := BuildHistogram(same, "x", 24, "")
	require.NotNil(t, cfg)
	require.Len(t, cfg.Series, 1, "no density for zero variance")
	require.Len(t, cfg.Series[0].Data, 1)
	assert.Equal(t, 3.0, cfg.Series[0].Data[0].Value)
}

func TestBuildScatter(t *testing.T) {
	v := NewSliceView([]Record{
		{Dimensions: map[string]string{"id": "a"}, Measures: map[string]float64{"r": 1, "m": 10}},
		{Dimensions: map[string]string{"id": "b"}, Measures: map[string]float64{"r": math.NaN(), "m": 20}},
		{Dimensions: map[string]string{"id": "c"}, Measures: map[string]float64{"r": 3, "m": 30.456}},
	})
	cfg := BuildScatter(v, "r", "m", "id", "R vs M")
	require.NotNil(t, cfg)
	pts := cfg.Series[0].Data
	require.Len(t, pts, 2)
	assert.Equal(t, "c", pts[1].Label)
	assert.Equal(t, 3.0, pts[1].X)
	assert.Equal(t, 30.46, pts[1].Value)

	assert.Nil(t, BuildScatter(NewSliceView(nil), "r", "m", "id", ""))
}

func TestBuildAggregatedTable(t *testing.T) {
	groups := []Group{{Label: "boleto", Value: 3, Count: 3}, {Label: "voucher", Value: 1, Count: 1}}
	td := BuildTable(QuerySpec{Aggregation: "count", GroupBy: []string{"payment_type"}}, groups, nil, "record_count", "")
	require.Len(t, td.Rows, 2)
	assert.Equal(t, []string{"boleto", "3.00", "3", "75.0"}, td.Rows[0])
	assert.Equal(t, "25.0", td.Rows[1][3])
	assert.Equal(t, "Payment Type", td.Columns[0].Label)
	assert.Equal(t, "4", td.Summary.Values["value"])
}

func TestGrowthText(t *testing.T) {
	v := sampleView()
	td := BuildGrowthText(v, "record_count", "order_month")
	require.NotNil(t, td.Growth)
	assert.Equal(t, "2018-02", td.Growth.PreviousPeriod)
	assert.Equal(t, "2018-03", td.Growth.LatestPeriod)
	assert.Equal(t, "decreased", td.Growth.Direction)
	assert.InDelta(t, -50.0, td.Growth.ChangePercent, 1e-9)
	assert.Equal(t, "↓ 50.0%", td.Value)
	assert.Equal(t, "2018-02 – 2018-03", td.Period)

	require.Len(t, td.Growth.Periods, 3)
	assert.Equal(t, PeriodChange{Period: "2018-01", Value: 2}, td.Growth.Periods[0])
	assert.Equal(t, PeriodChange{Period: "2018-02", Value: 2}, td.Growth.Periods[1])
	assert.InDelta(t, -50.0, td.Growth.Periods[2].ChangePercent, 1e-9)

	one := ApplyFilters(v, Filters{Dimensions: map[string][]string{"order_month": {"2018-02"}}})
	single := BuildGrowthText(one, "record_count", "order_month")
	assert.Equal(t, "insufficient data", single.Growth.Direction)
	assert.Equal(t, "2018-02", single.Period)

	assert.Equal(t, "2018-01 – 2018-03", DerivePeriod(v, "order_month"))
	assert.Equal(t, "No data", DerivePeriod(NewSliceView(nil), "order_month"))
}

// ============================================================================
// EXECUTOR TESTS
// ============================================================================

func TestExecuteChart(t *testing.T) {
	spec := QuerySpec{
		Intent:      "chart",
		Visualize:   "bar",
		Aggregation: "count",
		GroupBy:     []string{"payment_type"},
		SortBy:      "value_desc",
		Title:       "Payments",
		Reply:       "{count} orders, mostly {top_category}.",
	}
	res, err := Execute(spec, sampleView(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	assert.Equal(t, "chart", res.Type)
	require.NotNil(t, res.ChartConfig)
	assert.Equal(t, "credit_card", res.ChartConfig.Series[0].Data[0].Label)
	assert.Equal(t, "5 orders, mostly credit_card.", res.Reply)
}

func TestExecuteTextCurrency(t *testing.T) {
	spec := QuerySpec{Intent: "text", Aggregation: "sum", Measure: "payment_value", Reply: "Revenue {total} over {period}"}
	res, err := Execute(spec, sampleView(), WithCurrency("BRL", "payment_value"))
	require.NoError(t, err)
	require.NotNil(t, res.TextData)
	assert.Equal(t, "BRL 400.00", res.TextData.Value)
	assert.Equal(t, "BRL", res.DisplayUnit)
	assert.Equal(t, "Revenue BRL 400.00 over 2018-01 – 2018-03", res.Reply)
}

func TestExecuteAvgWithUnit(t *testing.T) {
	spec := QuerySpec{Intent: "text", Aggregation: "avg", Measure: "delivery_days"}
	res, err := Execute(spec, sampleView(), WithUnit("delivery_days", "days"))
	require.NoError(t, err)
	assert.Equal(t, "7.50 days", res.TextData.Value)
}

func TestExecuteEmptyAndFilteredEmpty(t *testing.T) {
	res, err := Execute(QuerySpec{Intent: "text"}, NewSliceView(nil))
	require.NoError(t, err)
	assert.Equal(t, "No data available to analyze.", res.Reply)

	spec := QuerySpec{Intent: "text", Filters: Filters{Dimensions: map[string][]string{"payment_type": {"pix"}}}}
	res, err = Execute(spec, sampleView())
	require.NoError(t, err)
	assert.Equal(t, "No records match the selected filters.", res.Reply)
}

func TestExecuteGrowthInsufficient(t *testing.T) {
	spec := QuerySpec{
		Intent:      "text",
		Aggregation: "growth",
		Filters:     Filters{Dimensions: map[string][]string{"order_month": {"2018-01"}}},
	}
	res, err := Execute(spec, sampleView())
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "At least 2 months")
}

func TestExecuteDistributions(t *testing.T) {
	hist, err := Execute(QuerySpec{Intent: "chart", Visualize: "histogram", Measure: "delivery_days", Bins: 3, YLabel: "Orders"}, sampleView())
	require.NoError(t, err)
	require.NotNil(t, hist.ChartConfig)
	assert.Equal(t, "Orders", hist.ChartConfig.YAxis)
	var total float64
	for _, p := range hist.ChartConfig.Series[0].Data {
		total += p.Value
	}
	assert.Equal(t, 4.0, total, "missing delivery is dropped")

	_, err = Execute(QuerySpec{Intent: "chart", Visualize: "scatter", Measure: "payment_value"}, sampleView())
	assert.Error(t, err)
}

func TestNormalizeQuerySpec(t *testing.T) {
	s := NormalizeQuerySpec(QuerySpec{Intent: "chart", Aggregation: "list"})
	assert.Equal(t, "table", s.Intent)

	s = NormalizeQuerySpec(QuerySpec{Intent: "chart", Visualize: "bar"})
	assert.Equal(t, "text", s.Intent)

	s = NormalizeQuerySpec(QuerySpec{Intent: "chart", Visualize: "histogram"})
	assert.Equal(t, "chart", s.Intent)
}

func TestDomainAdapter(t *testing.T) {
	type row struct {
		Name  string
		Value float64
	}
	view := NewDomainAdapter[row]().
		Dimension("name", func(r row) string { return r.Name }).
		Measure("value", func(r row) float64 { return r.Value }).
		Bind([]row{{"a", 1}, {"b", 2}})

	assert.Equal(t, 2, view.Len())
	assert.Equal(t, "b", view.Dimension(1, "name"))
	assert.Equal(t, 2.0, view.Measure(1, "value"))
	assert.Equal(t, "", view.Dimension(5, "name"))
	assert.Equal(t, []string{"name"}, view.DimensionKeys())
}

func TestSliceViewKeys(t *testing.T) {
	v := sampleView()
	assert.Equal(t, []string{"order_date", "order_month", "payment_type", "product_category_name"}, v.DimensionKeys())
	assert.Equal(t, []string{"delivery_days", "payment_value", "record_count"}, v.MeasureKeys())
	assert.Equal(t, "", v.Dimension(-1, "payment_type"))
	assert.Equal(t, 0.0, v.Measure(99, "payment_value"))

	sub := ApplyFilters(v, Filters{Dimensions: map[string][]string{"payment_type": {"voucher"}}})
	require.Equal(t, 1, sub.Len())
	assert.Equal(t, 200.0, sub.Measure(0, "payment_value"))
	assert.Equal(t, v.DimensionKeys(), sub.DimensionKeys())
}
