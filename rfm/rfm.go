// Package rfm computes the customer Recency / Frequency / Monetary report.
//
// Recency is whole days between a reference time and the customer's last
// purchase, Frequency counts the customer's orders and Monetary sums their
// payments. Customers are then ranked into quintiles and segmented.
package rfm

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spektr-org/ecomdash/orders"
)

// ErrReferenceBeforePurchase is returned when an explicit reference time is
// earlier than a purchase in the input, which would give negative recency.
var ErrReferenceBeforePurchase = errors.New("reference time is before the latest purchase")

// Segment names, best first.
const (
	SegmentChampions = "Champions"
	SegmentLoyal     = "Loyal"
	SegmentAtRisk    = "At Risk"
	SegmentLost      = "Lost"
)

// Segments lists every segment in display order.
var Segments = []string{SegmentChampions, SegmentLoyal, SegmentAtRisk, SegmentLost}

// Customer is one row of the report.
type Customer struct {
	CustomerID   string          `json:"customerId"`
	Recency      int             `json:"recency"`
	Frequency    int             `json:"frequency"`
	Monetary     decimal.Decimal `json:"monetary"`
	LastPurchase time.Time       `json:"lastPurchase"`
	RScore       int             `json:"rScore"`
	FScore       int             `json:"fScore"`
	MScore       int             `json:"mScore"`
	Score        int             `json:"score"`
	Segment      string          `json:"segment"`
}

// Options controls Compute.
type Options struct {
	// Reference is the "now" recency is measured from. Zero means the
	// latest purchase in the input.
	Reference time.Time
	// DistinctOrders counts distinct order IDs instead of order rows.
	DistinctOrders bool
}

// Report is the computed table.
type Report struct {
	Reference time.Time  `json:"reference"`
	Customers []Customer `json:"customers"`
	// Unidentified counts customers left out because none of their rows
	// carried an order_id.
	Unidentified int `json:"unidentified,omitempty"`
}

// Len returns the number of customers.
func (r *Report) Len() int { return len(r.Customers) }

// TotalMonetary sums Monetary over every customer.
func (r *Report) TotalMonetary() decimal.Decimal {
	total := decimal.Zero
	for _, c := range r.Customers {
		total = total.Add(c.Monetary)
	}
	return total
}

// ============================================================================
// COMPUTE
// ============================================================================

type accumulator struct {
	last     time.Time
	rows     int
	orderIDs map[string]struct{}
	monetary decimal.Decimal
}

// Compute groups rows by customer and returns a scored report in the
// default order. Empty input yields an empty report.
func Compute(rows []orders.Order, opts Options) (*Report, error) {
	byCustomer := make(map[string]*accumulator)
	var latest time.Time

	for _, o := range rows {
		acc, ok := byCustomer[o.CustomerID]
		if !ok {
			acc = &accumulator{monetary: decimal.Zero}
			if opts.DistinctOrders {
				acc.orderIDs = make(map[string]struct{})
			}
			byCustomer[o.CustomerID] = acc
		}
		if o.PurchasedAt.After(acc.last) {
			acc.last = o.PurchasedAt
		}
		// Like a count over order_id, rows without one are not orders.
		if o.OrderID != "" {
			acc.rows++
			if acc.orderIDs != nil {
				acc.orderIDs[o.OrderID] = struct{}{}
			}
		}
		if v := o.PaymentValue; !math.IsNaN(v) && !math.IsInf(v, 0) {
			acc.monetary = acc.monetary.Add(decimal.NewFromFloat(v))
		}

		if o.PurchasedAt.After(latest) {
			latest = o.PurchasedAt
		}
	}

	ref := opts.Reference
	if ref.IsZero() {
		ref = latest
	} else if len(rows) > 0 && ref.Before(latest) {
		return nil, fmt.Errorf("%w: reference %s, latest purchase %s",
			ErrReferenceBeforePurchase, ref.Format(time.RFC3339), latest.Format(time.RFC3339))
	}

	customers := make([]Customer, 0, len(byCustomer))
	unidentified := 0
	for id, acc := range byCustomer {
		freq := acc.rows
		if acc.orderIDs != nil {
			freq = len(acc.orderIDs)
		}
		if freq == 0 {
			unidentified++
			continue
		}
		customers = append(customers, Customer{
			CustomerID:   id,
			Recency:      RecencyDays(ref, acc.last),
			Frequency:    freq,
			Monetary:     acc.monetary,
			LastPurchase: acc.last,
		})
	}

	Score(customers)
	Sort(customers)

	return &Report{Reference: ref, Customers: customers, Unidentified: unidentified}, nil
}

// RecencyDays is the whole number of days from last to ref, truncated.
func RecencyDays(ref, last time.Time) int {
	return int(ref.Sub(last) / (24 * time.Hour))
}

// ============================================================================
// ORDERING
// ============================================================================

// Sort orders customers by Recency ascending, Frequency descending,
// Monetary descending and finally CustomerID.
func Sort(customers []Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		a, b := customers[i], customers[j]
		if a.Recency != b.Recency {
			return a.Recency < b.Recency
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if c := a.Monetary.Cmp(b.Monetary); c != 0 {
			return c > 0
		}
		return a.CustomerID < b.CustomerID
	})
}

// ============================================================================
// SUMMARY + FILTER
// ============================================================================

// SegmentSummary aggregates one segment.
type SegmentSummary struct {
	Segment    string          `json:"segment"`
	Customers  int             `json:"customers"`
	Share      float64         `json:"share"` // percent of customers
	Monetary   decimal.Decimal `json:"monetary"`
	AvgRecency float64         `json:"avgRecency"`
}

// Summary returns one entry per segment in display order, including empty ones.
func Summary(report *Report) []SegmentSummary {
	idx := make(map[string]int, len(Segments))
	out := make([]SegmentSummary, len(Segments))
	for i, s := range Segments {
		idx[s] = i
		out[i] = SegmentSummary{Segment: s, Monetary: decimal.Zero}
	}

	recencySum := make([]int, len(Segments))
	for _, c := range report.Customers {
		i, ok := idx[c.Segment]
		if !ok {
			continue
		}
		out[i].Customers++
		out[i].Monetary = out[i].Monetary.Add(c.Monetary)
		recencySum[i] += c.Recency
	}

	total := len(report.Customers)
	for i := range out {
		if out[i].Customers == 0 {
			continue
		}
		out[i].AvgRecency = roundTo2(float64(recencySum[i]) / float64(out[i].Customers))
		out[i].Share = roundTo2(float64(out[i].Customers) / float64(total) * 100)
	}
	return out
}

// Filter keeps customers of one segment (case-insensitive, empty means all)
// and truncates to limit when limit > 0. Order is preserved.
func Filter(report *Report, segment string, limit int) []Customer {
	out := make([]Customer, 0, len(report.Customers))
	for _, c := range report.Customers {
		if segment != "" && !strings.EqualFold(c.Segment, segment) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ValidSegment reports whether s names a known segment (case-insensitive).
func ValidSegment(s string) bool {
	for _, seg := range Segments {
		if strings.EqualFold(seg, s) {
			return true
		}
	}
	return false
}
