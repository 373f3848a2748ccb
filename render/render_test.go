package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/ecomdash/engine"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func categoryChart(chartType string) *engine.ChartConfig {
	return &engine.ChartConfig{
		ChartType: chartType,
		Title:     "Orders by payment type",
		XAxis:     "Payment Type",
		YAxis:     "Count",
		Colors:    []string{"#4F46E5", "#10B981"},
		ShowGrid:  true,
		Series: []engine.ChartSeries{{
			Name: "orders",
			Data: []engine.ChartPoint{
				{Label: "credit_card", Value: 76795, Share: 73.92},
				{Label: "boleto", Value: 19784, Share: 19.04},
				{Label: "voucher", Value: 5775, Share: 5.56},
				{Label: "debit_card", Value: 1529, Share: 1.47},
			},
		}},
	}
}

func TestRenderCategoryCharts(t *testing.T) {
	r := New(640, 360)
	for _, kind := range []string{"bar", "line", "area", "pie"} {
		t.Run(kind, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Render(categoryChart(kind), &buf))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}
}

func TestRenderSinglePointLine(t *testing.T) {
	for _, kind := range []string{"line", "area"} {
		t.Run(kind, func(t *testing.T) {
			cfg := categoryChart(kind)
			cfg.Series[0].Data = []engine.ChartPoint{{Label: "2018-01", Value: 42}}
			var buf bytes.Buffer
			require.NoError(t, New(0, 0).Render(cfg, &buf))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}

	// Several series, one point each.
	cfg := categoryChart("line")
	cfg.Series = []engine.ChartSeries{
		{Name: "boleto", Data: []engine.ChartPoint{{Label: "2018-01", Value: 3}}},
		{Name: "credit_card", Data: []engine.ChartPoint{{Label: "2018-01", Value: 0}}},
	}
	var buf bytes.Buffer
	require.NoError(t, New(320, 200).Render(cfg, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderStackedBar(t *testing.T) {
	cfg := &engine.ChartConfig{
		ChartType: "stacked_bar",
		Title:     "Payments per month",
		Series: []engine.ChartSeries{
			{Name: "boleto", Data: []engine.ChartPoint{{Label: "2018-01", Value: 3}, {Label: "2018-02", Value: 4}}},
			{Name: "credit_card", Data: []engine.ChartPoint{{Label: "2018-01", Value: 10}, {Label: "2018-02", Value: 12}}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, New(640, 360).Render(cfg, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderHistogramAndScatter(t *testing.T) {
	records := make([]engine.Record, 0, 50)
	for i := 0; i < 50; i++ {
		records = append(records, engine.Record{
			Dimensions: map[string]string{"customer_id": string(rune('a' + i%26))},
			Measures:   map[string]float64{"order_hour": float64(i % 24), "payment_value": float64(i * 3)},
		})
	}
	view := engine.NewSliceView(records)
	r := New(640, 360)

	hist := engine.BuildHistogram(view, "order_hour", 24, "Order hour")
	require.NotNil(t, hist)
	var buf bytes.Buffer
	require.NoError(t, r.Render(hist, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	scatter := engine.BuildScatter(view, "order_hour", "payment_value", "customer_id", "Hour vs value")
	require.NotNil(t, scatter)
	buf.Reset()
	require.NoError(t, r.Render(scatter, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderErrors(t *testing.T) {
	r := New(640, 360)
	var buf bytes.Buffer

	assert.ErrorIs(t, r.Render(nil, &buf), ErrEmptyChart)
	assert.ErrorIs(t, r.Render(&engine.ChartConfig{ChartType: "bar"}, &buf), ErrEmptyChart)

	cfg := categoryChart("radar")
	assert.ErrorIs(t, r.Render(cfg, &buf), ErrUnsupportedChart)
	assert.False(t, Supported("radar"))
	assert.True(t, Supported("histogram"))

	zeroPie := categoryChart("pie")
	for i := range zeroPie.Series[0].Data {
		zeroPie.Series[0].Data[i].Value = 0
	}
	assert.ErrorIs(t, r.Render(zeroPie, &buf), ErrEmptyChart)
}

func TestNewDefaults(t *testing.T) {
	r := New(-1, 0)
	assert.Equal(t, DefaultWidth, r.Width)
	assert.Equal(t, DefaultHeight, r.Height)
	assert.Equal(t, 1, labelStride(10, 12))
	assert.Equal(t, 3, labelStride(30, 12))
}
