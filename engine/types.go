package engine

// ============================================================================
// ENGINE TYPES: Domain-Agnostic Analytics
// ============================================================================
// The engine never knows about orders or customers. It reads any dataset
// through RecordView and returns render-ready output (chart, table, text).
// ============================================================================

// ============================================================================
// RECORD: Generic data row
// ============================================================================

// Record is a single data row with string dimensions and numeric measures.
//
//	Record{Dimensions["payment_type"]="credit_card", Measures["payment_value"]=72.19}
type Record struct {
	Dimensions map[string]string  `json:"dimensions"`
	Measures   map[string]float64 `json:"measures"`
}

// ============================================================================
// QUERYSPEC: what the engine should compute
// ============================================================================

// QuerySpec defines what the engine should compute.
// Dashboard pages declare one QuerySpec per panel.
type QuerySpec struct {
	Intent      string   `json:"intent"`      // "text", "table", "chart"
	Filters     Filters  `json:"filters"`     // Which records to include
	Aggregation string   `json:"aggregation"` // "sum", "count", "avg", "max", "min", "list", "growth", "none"
	Measure     string   `json:"measure"`     // Which measure to aggregate (empty → use default)
	GroupBy     []string `json:"groupBy"`     // Dimension keys: ["order_month"], ["payment_type"]
	SortBy      string   `json:"sortBy"`      // "value_desc", "value_asc", "date_asc", "date_desc", "alpha_asc"
	Limit       int      `json:"limit"`       // 0 = all
	Visualize   string   `json:"visualize"`   // "bar", "line", "pie", "stacked_bar", "area", "table", "text"
	Title       string   `json:"title"`
	XLabel      string   `json:"xLabel,omitempty"` // axis label override
	YLabel      string   `json:"yLabel,omitempty"`
	Reply       string   `json:"reply"` // Template: "{count} orders between {period}."

	// Distribution charts only.
	Bins     int    `json:"bins,omitempty"`     // histogram bin count
	XMeasure string `json:"xMeasure,omitempty"` // scatter x axis; Measure is y
	LabelBy  string `json:"labelBy,omitempty"`  // scatter point label dimension
}

// Filters define which records to include.
// Dimensions: OR within a dimension, AND across dimensions. Empty = all.
// Ranges: inclusive lexical bounds on a dimension (ISO dates sort correctly).
type Filters struct {
	Dimensions map[string][]string `json:"dimensions,omitempty"`
	Ranges     map[string]Range    `json:"ranges,omitempty"`
}

// Range is an inclusive [From, To] bound. An empty side is open.
type Range struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v string) bool {
	if r.From != "" && v < r.From {
		return false
	}
	if r.To != "" && v > r.To {
		return false
	}
	return true
}

// IsOpen reports whether neither side is bounded.
func (r Range) IsOpen() bool { return r.From == "" && r.To == "" }

// HasFilter returns true if a specific dimension filter is set.
func (f Filters) HasFilter(dimension string) bool {
	if vals, ok := f.Dimensions[dimension]; ok && len(vals) > 0 {
		return true
	}
	if r, ok := f.Ranges[dimension]; ok && !r.IsOpen() {
		return true
	}
	return false
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	for _, r := range f.Ranges {
		if !r.IsOpen() {
			return false
		}
	}
	return true
}

// ============================================================================
// RESULT: Render-ready output
// ============================================================================

// Result is the engine's render-ready output.
type Result struct {
	Success bool   `json:"success"`
	Type    string `json:"type"` // "chart", "table", "text"
	Reply   string `json:"reply"`
	Title   string `json:"title"`

	// Exactly one of these is populated based on Type:
	ChartConfig *ChartConfig `json:"chartConfig,omitempty"`
	TableData   *TableData   `json:"tableData,omitempty"`
	TextData    *TextData    `json:"textData,omitempty"`

	DisplayUnit string   `json:"displayUnit,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// ============================================================================
// GROUP: Intermediate computation result
// ============================================================================

// Group represents a grouped/aggregated result.
// Builders convert these into ChartConfig, TableData, or TextData.
type Group struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Count     int        `json:"count"`
	SubGroups []Group    `json:"subGroups,omitempty"`
	View      RecordView `json:"-"` // Sub-view for records in this group (zero-copy)
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"` // bar, line, area, pie, stacked_bar, histogram, scatter
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries represents a data series in a chart.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint represents a single data point.
// X is only meaningful for scatter and histogram charts (bin centre).
// Share is the percent of the series total, set for pie charts.
type ChartPoint struct {
	Label string  `json:"label"`
	X     float64 `json:"x,omitempty"`
	Value float64 `json:"value"`
	Share float64 `json:"share,omitempty"`
}

// PointCount returns the number of points across all series.
func (c *ChartConfig) PointCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, s := range c.Series {
		n += len(s.Data)
	}
	return n
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "currency"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary provides totals or aggregations for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// ============================================================================
// TEXT TYPES
// ============================================================================

// TextData is structured data for single-value answers (type="text").
type TextData struct {
	Value    string      `json:"value"`
	RawValue float64     `json:"rawValue"`
	Unit     string      `json:"unit"`
	Period   string      `json:"period"`
	Count    int         `json:"count"`
	Growth   *GrowthData `json:"growth,omitempty"`
}

// GrowthData compares the latest period with the one before it.
type GrowthData struct {
	PreviousValue  float64 `json:"previousValue"`
	LatestValue    float64 `json:"latestValue"`
	PreviousPeriod string  `json:"previousPeriod"`
	LatestPeriod   string  `json:"latestPeriod"`
	ChangeAmount   float64 `json:"changeAmount"`
	ChangePercent  float64 `json:"changePercent"`
	Direction      string  `json:"direction"` // "increased", "decreased", "unchanged", "insufficient data"

	// Periods is the full series in chronological order.
	Periods []PeriodChange `json:"periods,omitempty"`
}

// PeriodChange is one period's total and its change from the prior period.
// ChangePercent is 0 for the first period and when the prior total is 0.
type PeriodChange struct {
	Period        string  `json:"period"`
	Value         float64 `json:"value"`
	ChangePercent float64 `json:"changePercent"`
}
