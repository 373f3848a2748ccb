package engine

import "go.uber.org/zap"

// Option configures engine behavior via functional options pattern.
type Option func(*config)

type config struct {
	Currency         string
	CurrencyMeasures map[string]bool   // measures formatted as money
	Units            map[string]string // measure → display unit ("days")
	DefaultMeasure   string            // default measure key if QuerySpec.Measure is empty
	PeriodDimension  string            // dimension holding "2006-01" months for growth/period
	Logger           *zap.Logger
}

// WithCurrency marks measures as monetary, formatted with the currency code.
//
//	engine.WithCurrency("BRL", "payment_value", "price")
func WithCurrency(code string, measures ...string) Option {
	return func(c *config) {
		c.Currency = code
		for _, m := range measures {
			c.CurrencyMeasures[m] = true
		}
	}
}

// WithUnit sets a display unit for a non-monetary measure.
func WithUnit(measure, unit string) Option {
	return func(c *config) {
		c.Units[measure] = unit
	}
}

// WithDefaultMeasure sets the measure to aggregate when QuerySpec.Measure is empty.
func WithDefaultMeasure(measure string) Option {
	return func(c *config) {
		c.DefaultMeasure = measure
	}
}

// WithPeriodDimension sets which dimension carries the month used for
// growth and period labels. Default "order_month".
func WithPeriodDimension(dimension string) Option {
	return func(c *config) {
		c.PeriodDimension = dimension
	}
}

// WithLogger routes engine logs to the given logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		CurrencyMeasures: make(map[string]bool),
		Units:            make(map[string]string),
		DefaultMeasure:   "record_count",
		PeriodDimension:  "order_month",
		Logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// unitFor returns the display unit of a measure under this config.
func (c *config) unitFor(measure string) string {
	if c.CurrencyMeasures[measure] {
		return c.Currency
	}
	return c.Units[measure]
}

// formatValue renders a value for a measure + aggregation.
func (c *config) formatValue(value float64, measure, aggregation string) string {
	if aggregation == "count" {
		return FormatInt(int(value))
	}
	if c.CurrencyMeasures[measure] {
		return FormatCurrency(value, c.Currency)
	}
	return FormatNumber(value, c.Units[measure])
}
