// Package dashboard computes the dashboard pages from a loaded dataset.
//
// A page is a fixed set of panels. Order pages run engine queries over the
// orders in the selected date range; the rfm page is built from the customer
// report.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spektr-org/ecomdash/engine"
	"github.com/spektr-org/ecomdash/orders"
	"github.com/spektr-org/ecomdash/rfm"
)

var (
	// ErrUnknownPage is returned for a page key that does not exist.
	ErrUnknownPage = errors.New("unknown page")
	// ErrUnknownPanel is returned for a panel key that does not exist on its page.
	ErrUnknownPanel = errors.New("unknown panel")
	// ErrInvalidRange is returned when the start date is after the end date.
	ErrInvalidRange = errors.New("start date is after end date")
	// ErrInvalidSegment is returned for an unknown RFM segment filter.
	ErrInvalidSegment = errors.New("unknown segment")
)

// Config holds the dashboard tunables.
type Config struct {
	TopCategories int
	HourBins      int
	DeliveryBins  int
	Currency      string
	RFMRows       int // rows in the rfm page table; 0 means all
	RFM           rfm.Options
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		TopCategories: 10,
		HourBins:      24,
		DeliveryBins:  20,
		Currency:      "BRL",
		RFMRows:       100,
	}
}

// PageParams selects the purchase date range. Zero bounds are open.
type PageParams struct {
	Start time.Time
	End   time.Time
}

// Panel is one titled engine result on a page.
type Panel struct {
	Key    string         `json:"key"`
	Title  string         `json:"title"`
	Result *engine.Result `json:"result"`
}

// Page is a computed page.
type Page struct {
	Key     string  `json:"key"`
	Title   string  `json:"title"`
	Start   string  `json:"start,omitempty"`
	End     string  `json:"end,omitempty"`
	Records int     `json:"records"`
	Panels  []Panel `json:"panels"`
}

// Panel returns the panel with the given key.
func (p *Page) Panel(key string) (*Panel, bool) {
	for i := range p.Panels {
		if p.Panels[i].Key == key {
			return &p.Panels[i], true
		}
	}
	return nil, false
}

// Service computes pages. It is safe for concurrent use; the dataset is
// never modified.
type Service struct {
	ds   *orders.Dataset
	cfg  Config
	log  *zap.Logger
	opts []engine.Option
}

// NewService wires a dataset to the page definitions.
func NewService(ds *orders.Dataset, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.TopCategories <= 0 {
		cfg.TopCategories = def.TopCategories
	}
	if cfg.HourBins <= 0 {
		cfg.HourBins = def.HourBins
	}
	if cfg.DeliveryBins <= 0 {
		cfg.DeliveryBins = def.DeliveryBins
	}
	if cfg.RFMRows < 0 {
		cfg.RFMRows = 0
	}

	return &Service{
		ds:  ds,
		cfg: cfg,
		log: logger,
		opts: []engine.Option{
			engine.WithCurrency(cfg.Currency, orders.MeasurePaymentValue, orders.MeasurePrice, orders.MeasureFreightValue),
			engine.WithUnit(orders.MeasureDeliveryDays, "days"),
			engine.WithUnit(orders.MeasureDaysLate, "days"),
			engine.WithDefaultMeasure(orders.MeasureRecordCount),
			engine.WithPeriodDimension(orders.DimOrderMonth),
			engine.WithLogger(logger),
		},
	}
}

// Dataset returns the underlying dataset.
func (s *Service) Dataset() *orders.Dataset { return s.ds }

// Pages lists every page in display order.
func (s *Service) Pages() []PageInfo {
	out := make([]PageInfo, 0, len(pageDefs))
	for _, p := range pageDefs {
		info := p.PageInfo
		if p.panels != nil {
			defs := p.panels(s.cfg)
			info.Panels = make([]string, len(defs))
			for i, d := range defs {
				info.Panels[i] = d.key
			}
		}
		out = append(out, info)
	}
	return out
}

// Page computes one page over the orders in the requested range.
func (s *Service) Page(ctx context.Context, key string, params PageParams) (*Page, error) {
	def, ok := findPage(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPage, key)
	}
	if err := checkRange(params); err != nil {
		return nil, err
	}

	started := time.Now()
	rows := s.ds.Between(params.Start, params.End)
	page := &Page{
		Key:     def.Key,
		Title:   def.Title,
		Records: len(rows),
	}
	page.Start, page.End = s.resolvedRange(params)

	var err error
	if def.Key == PageRFM {
		err = s.rfmPanels(ctx, page, rows)
	} else {
		err = s.orderPanels(ctx, page, def, rows)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("page computed",
		zap.String("page", key),
		zap.Int("records", page.Records),
		zap.Int("panels", len(page.Panels)),
		zap.Duration("duration", time.Since(started)))
	return page, nil
}

// PagePanel computes a page and returns one of its panels.
func (s *Service) PagePanel(ctx context.Context, key, panel string, params PageParams) (*Panel, error) {
	page, err := s.Page(ctx, key, params)
	if err != nil {
		return nil, err
	}
	p, ok := page.Panel(panel)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPanel, key, panel)
	}
	return p, nil
}

func (s *Service) orderPanels(ctx context.Context, page *Page, def pageDef, rows []orders.Order) error {
	view := orders.BindView(rows)
	for _, pd := range def.panels(s.cfg) {
		if err := ctx.Err(); err != nil {
			return err
		}
		spec := engine.NormalizeQuerySpec(pd.spec)
		res, err := engine.Execute(spec, view, s.opts...)
		if err != nil {
			return fmt.Errorf("panel %s/%s: %w", def.Key, pd.key, err)
		}
		page.Panels = append(page.Panels, Panel{Key: pd.key, Title: spec.Title, Result: res})
	}
	return nil
}

func checkRange(params PageParams) error {
	if !params.Start.IsZero() && !params.End.IsZero() && params.Start.After(params.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			params.Start.Format(orders.DateLayout), params.End.Format(orders.DateLayout))
	}
	return nil
}

// resolvedRange fills open bounds with the dataset's first and last purchase dates.
func (s *Service) resolvedRange(params PageParams) (string, string) {
	start, end := params.Start, params.End
	if start.IsZero() {
		start = s.ds.MinPurchase()
	}
	if end.IsZero() {
		end = s.ds.MaxPurchase()
	}
	var from, to string
	if !start.IsZero() {
		from = start.Format(orders.DateLayout)
	}
	if !end.IsZero() {
		to = end.Format(orders.DateLayout)
	}
	return from, to
}

// ParseDate parses a YYYY-MM-DD query value; empty is the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(orders.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q, want YYYY-MM-DD", ErrInvalidRange, s)
	}
	return t, nil
}
