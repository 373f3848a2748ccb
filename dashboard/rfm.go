package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spektr-org/ecomdash/engine"
	"github.com/spektr-org/ecomdash/orders"
	"github.com/spektr-org/ecomdash/rfm"
)

// RFM page panel keys.
const (
	PanelRFMTable    = "rfm-table"
	PanelRFMScatter  = "recency-vs-monetary"
	PanelRFMSegments = "segments"
)

// Customer view keys.
const (
	dimCustomer  = "customer_id"
	dimSegment   = "segment"
	mesRecency   = "recency"
	mesFrequency = "frequency"
	mesMonetary  = "monetary"
	mesScore     = "rfm_score"
	mesCount     = "record_count"
)

var customerAdapter = engine.NewDomainAdapter[rfm.Customer]().
	Dimension(dimCustomer, func(c rfm.Customer) string { return c.CustomerID }).
	Dimension(dimSegment, func(c rfm.Customer) string { return c.Segment }).
	Measure(mesRecency, func(c rfm.Customer) float64 { return float64(c.Recency) }).
	Measure(mesFrequency, func(c rfm.Customer) float64 { return float64(c.Frequency) }).
	Measure(mesMonetary, func(c rfm.Customer) float64 { return c.Monetary.InexactFloat64() }).
	Measure(mesScore, func(c rfm.Customer) float64 { return float64(c.Score) }).
	Measure(mesCount, func(rfm.Customer) float64 { return 1 })

// RFMParams narrows the report. Zero values fall back to the service config.
type RFMParams struct {
	PageParams
	Segment        string
	Limit          int
	Reference      time.Time
	DistinctOrders *bool
}

// RFMResult is the report plus the filtered customer rows and segment summary.
type RFMResult struct {
	Reference time.Time            `json:"reference"`
	Total     int                  `json:"total"`
	Customers []rfm.Customer       `json:"customers"`
	Summary   []rfm.SegmentSummary `json:"summary"`
	Report    *rfm.Report          `json:"-"`
}

// RFM computes the customer report over the requested range.
func (s *Service) RFM(ctx context.Context, params RFMParams) (*RFMResult, error) {
	if err := checkRange(params.PageParams); err != nil {
		return nil, err
	}
	if params.Segment != "" && !rfm.ValidSegment(params.Segment) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSegment, params.Segment)
	}
	if params.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0, got %d", params.Limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := s.cfg.RFM
	if !params.Reference.IsZero() {
		opts.Reference = params.Reference
	}
	if params.DistinctOrders != nil {
		opts.DistinctOrders = *params.DistinctOrders
	}

	report, err := s.computeRFM(s.ds.Between(params.Start, params.End), opts)
	if err != nil {
		return nil, err
	}
	return &RFMResult{
		Reference: report.Reference,
		Total:     report.Len(),
		Customers: rfm.Filter(report, params.Segment, params.Limit),
		Summary:   rfm.Summary(report),
		Report:    report,
	}, nil
}

func (s *Service) computeRFM(rows []orders.Order, opts rfm.Options) (*rfm.Report, error) {
	started := time.Now()
	report, err := rfm.Compute(rows, opts)
	if err != nil {
		return nil, fmt.Errorf("compute rfm: %w", err)
	}
	s.log.Info("rfm computed",
		zap.Int("orders", len(rows)),
		zap.Int("customers", report.Len()),
		zap.Int("unidentified", report.Unidentified),
		zap.Time("reference", report.Reference),
		zap.Duration("duration", time.Since(started)))
	return report, nil
}

// rfmPanels fills the rfm page: the sorted customer table, a recency vs
// monetary scatter and the segment distribution.
func (s *Service) rfmPanels(ctx context.Context, page *Page, rows []orders.Order) error {
	report, err := s.computeRFM(rows, s.cfg.RFM)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	table := rfmTable(report, s.cfg.RFMRows, s.cfg.Currency)
	page.Panels = append(page.Panels, Panel{
		Key:   PanelRFMTable,
		Title: table.Title,
		Result: &engine.Result{
			Success:   true,
			Type:      "table",
			Title:     table.Title,
			TableData: table,
			Reply: fmt.Sprintf("%s as of %s.",
				customerCount(report.Len()), report.Reference.Format(orders.DateLayout)),
		},
	})

	view := customerAdapter.Bind(report.Customers)

	scatter, err := engine.Execute(engine.QuerySpec{
		Intent:    "chart",
		Visualize: "scatter",
		Measure:   mesMonetary,
		XMeasure:  mesRecency,
		LabelBy:   dimCustomer,
		Title:     "Recency vs monetary",
		XLabel:    "Recency (days)",
		YLabel:    "Monetary (" + s.cfg.Currency + ")",
		Reply:     "Each point is one customer.",
	}, view, s.opts...)
	if err != nil {
		return fmt.Errorf("panel %s/%s: %w", PageRFM, PanelRFMScatter, err)
	}
	page.Panels = append(page.Panels, Panel{Key: PanelRFMScatter, Title: scatter.Title, Result: scatter})

	segments, err := engine.Execute(engine.QuerySpec{
		Intent:      "chart",
		Visualize:   "pie",
		Aggregation: "count",
		Measure:     mesCount,
		GroupBy:     []string{dimSegment},
		SortBy:      "value_desc",
		Title:       "Customer segments",
		Reply:       "{top_category} is the largest segment with {top_amount} customers.",
	}, view, s.opts...)
	if err != nil {
		return fmt.Errorf("panel %s/%s: %w", PageRFM, PanelRFMSegments, err)
	}
	page.Panels = append(page.Panels, Panel{Key: PanelRFMSegments, Title: segments.Title, Result: segments})
	return nil
}

func rfmTable(report *rfm.Report, limit int, currency string) *engine.TableData {
	customers := report.Customers
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}

	rows := make([][]string, len(customers))
	for i, c := range customers {
		rows[i] = []string{
			c.CustomerID,
			strconv.Itoa(c.Recency),
			strconv.Itoa(c.Frequency),
			c.Monetary.StringFixed(2),
			strconv.Itoa(c.Score),
			c.Segment,
		}
	}

	title := "RFM table"
	if len(customers) < report.Len() {
		title = fmt.Sprintf("RFM table (first %d of %s)", len(customers), engine.FormatInt(report.Len()))
	}
	return &engine.TableData{
		Title: title,
		Columns: []engine.Column{
			{Key: "customer_id", Label: "Customer", Type: "text", Align: "left"},
			{Key: "recency", Label: "Recency", Type: "number", Align: "right"},
			{Key: "frequency", Label: "Frequency", Type: "number", Align: "right"},
			{Key: "monetary", Label: "Monetary", Type: "currency", Align: "right"},
			{Key: "rfm_score", Label: "Score", Type: "number", Align: "center"},
			{Key: "segment", Label: "Segment", Type: "text", Align: "left"},
		},
		Rows: rows,
		Summary: &engine.Summary{
			Label: fmt.Sprintf("Total (%s)", customerCount(report.Len())),
			Values: map[string]string{
				"monetary": engine.FormatCurrency(report.TotalMonetary().InexactFloat64(), currency),
			},
		},
	}
}

func customerCount(n int) string {
	if n == 1 {
		return "1 customer"
	}
	return engine.FormatInt(n) + " customers"
}
