package orders

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"

	"github.com/spektr-org/ecomdash/engine"
)

// ErrMissingColumn is returned when a required column is absent from the CSV.
var ErrMissingColumn = errors.New("missing required column")

// Column names in the cleaned export.
const (
	ColOrderID          = "order_id"
	ColCustomerID       = "customer_id"
	ColCustomerUniqueID = "customer_unique_id"
	ColCustomerCity     = "customer_city"
	ColCustomerState    = "customer_state"
	ColOrderStatus      = "order_status"
	ColPurchased        = "order_purchase_timestamp"
	ColDelivered        = "order_delivered_customer_date"
	ColEstimated        = "order_estimated_delivery_date"
	ColProductCategory  = "product_category_name"
	ColPaymentType      = "payment_type"
	ColPaymentValue     = "payment_value"
	ColPrice            = "price"
	ColFreightValue     = "freight_value"
)

// RequiredColumns must be present for Load to succeed.
var RequiredColumns = []string{ColOrderID, ColCustomerID, ColPurchased, ColPaymentValue}

// Drop reasons recorded in Stats.
const (
	DropBadPurchase     = "bad_purchase_timestamp"
	DropMissingCustomer = "missing_customer"
	FixBadPayment       = "bad_payment"
)

// Stats describes what happened while loading.
type Stats struct {
	RowsRead    int            `json:"rowsRead"`
	RowsKept    int            `json:"rowsKept"`
	Dropped     map[string]int `json:"dropped,omitempty"`
	Corrected   map[string]int `json:"corrected,omitempty"`
	LoadedAt    time.Time      `json:"loadedAt"`
	SourceBytes int64          `json:"sourceBytes,omitempty"`
}

// Dataset is the in-memory, read-only order table.
type Dataset struct {
	Orders []Order
	Stats  Stats
}

// LoadOptions tunes loading.
type LoadOptions struct {
	Logger   *zap.Logger
	Location *time.Location // timezone for naive timestamps; default UTC
}

// LoadFile opens path and loads it.
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Load(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if info, err := f.Stat(); err == nil {
		ds.Stats.SourceBytes = info.Size()
	}
	return ds, nil
}

// Load reads the cleaned CSV. All columns are read as strings and converted
// here so that the date fallback and missing-value rules stay in one place.
func Load(ctx context.Context, r io.Reader, opts LoadOptions) (*Dataset, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cols := make(map[string][]string)
	n := 0
	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		// gota rejects a header with no rows; that is an empty dataset.
		header, ok := headerOnly(data)
		if !ok {
			return nil, fmt.Errorf("read csv: %w", df.Err)
		}
		for _, name := range header {
			cols[columnKey(name)] = nil
		}
	} else {
		for _, name := range df.Names() {
			cols[columnKey(name)] = df.Col(name).Records()
		}
		n = df.Nrow()
	}
	for _, req := range RequiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, req)
		}
	}

	get := func(col string, i int) string {
		vals, ok := cols[col]
		if !ok || i >= len(vals) {
			return ""
		}
		v := strings.TrimSpace(vals[i])
		if isMissing(v) {
			return ""
		}
		return v
	}

	ds := &Dataset{
		Orders: make([]Order, 0, n),
		Stats: Stats{
			RowsRead:  n,
			Dropped:   make(map[string]int),
			Corrected: make(map[string]int),
		},
	}

	for i := 0; i < n; i++ {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		purchased, ok := ParseTimestampIn(get(ColPurchased, i), loc)
		if !ok {
			ds.Stats.Dropped[DropBadPurchase]++
			continue
		}
		customer := get(ColCustomerID, i)
		if customer == "" {
			ds.Stats.Dropped[DropMissingCustomer]++
			continue
		}

		o := Order{
			OrderID:          get(ColOrderID, i),
			CustomerID:       customer,
			CustomerUniqueID: get(ColCustomerUniqueID, i),
			CustomerCity:     get(ColCustomerCity, i),
			CustomerState:    get(ColCustomerState, i),
			OrderStatus:      get(ColOrderStatus, i),
			PurchasedAt:      purchased,
			ProductCategory:  get(ColProductCategory, i),
			PaymentType:      get(ColPaymentType, i),
			Price:            parseAmount(get(ColPrice, i)),
			FreightValue:     parseAmount(get(ColFreightValue, i)),
		}
		if t, ok := ParseTimestampIn(get(ColDelivered, i), loc); ok {
			o.DeliveredAt = t
		}
		if t, ok := ParseTimestampIn(get(ColEstimated, i), loc); ok {
			o.EstimatedAt = t
		}

		if v, ok := parseFinite(get(ColPaymentValue, i)); ok {
			o.PaymentValue = v
		} else {
			ds.Stats.Corrected[FixBadPayment]++
		}

		ds.Orders = append(ds.Orders, o)
	}

	ds.Stats.RowsKept = len(ds.Orders)
	ds.Stats.LoadedAt = time.Now().UTC()

	if dropped := ds.Stats.RowsRead - ds.Stats.RowsKept; dropped > 0 {
		log.Warn("dropped dataset rows",
			zap.Int("dropped", dropped),
			zap.Any("reasons", ds.Stats.Dropped))
	}
	if c := ds.Stats.Corrected[FixBadPayment]; c > 0 {
		log.Warn("unparseable payment values set to 0", zap.Int("rows", c))
	}
	log.Info("dataset loaded",
		zap.Int("rows_read", ds.Stats.RowsRead),
		zap.Int("rows_kept", ds.Stats.RowsKept))

	return ds, nil
}

// parseAmount is parseFinite with 0 for anything unusable.
func parseAmount(s string) float64 {
	v, _ := parseFinite(s)
	return v
}

// parseFinite parses a number, rejecting NaN and ±Inf, which ParseFloat
// accepts in spellings like "nan" and "Infinity".
func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func columnKey(name string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
}

// headerOnly returns the header of a CSV that has no data rows.
func headerOnly(data []byte) ([]string, bool) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, false
	}
	if _, err := cr.Read(); err != io.EOF {
		return nil, false
	}
	return header, true
}

// ============================================================================
// DATASET ACCESSORS
// ============================================================================

// View binds every order to an engine.RecordView.
func (d *Dataset) View() engine.RecordView {
	return BindView(d.Orders)
}

// Len returns the number of loaded orders.
func (d *Dataset) Len() int { return len(d.Orders) }

// MinPurchase returns the earliest purchase timestamp (zero if empty).
func (d *Dataset) MinPurchase() time.Time {
	var min time.Time
	for _, o := range d.Orders {
		if min.IsZero() || o.PurchasedAt.Before(min) {
			min = o.PurchasedAt
		}
	}
	return min
}

// MaxPurchase returns the latest purchase timestamp (zero if empty).
func (d *Dataset) MaxPurchase() time.Time {
	var max time.Time
	for _, o := range d.Orders {
		if o.PurchasedAt.After(max) {
			max = o.PurchasedAt
		}
	}
	return max
}

// Between returns orders whose purchase date lies in [from, to], comparing
// calendar dates only. A zero bound is open. The result shares no memory
// with d.Orders beyond the Order values themselves.
func (d *Dataset) Between(from, to time.Time) []Order {
	lo, hi := "", ""
	if !from.IsZero() {
		lo = from.Format(DateLayout)
	}
	if !to.IsZero() {
		hi = to.Format(DateLayout)
	}
	out := make([]Order, 0, len(d.Orders))
	for _, o := range d.Orders {
		day := o.PurchasedAt.Format(DateLayout)
		if (lo == "" || day >= lo) && (hi == "" || day <= hi) {
			out = append(out, o)
		}
	}
	return out
}
