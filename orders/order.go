// Package orders loads the cleaned e-commerce order export and exposes it to
// the analytics engine.
//
// One CSV row is one order line already joined with its customer, product and
// payment. The same order_id may repeat across rows.
package orders

import (
	"math"
	"time"

	"github.com/spektr-org/ecomdash/engine"
)

// Order is one row of the cleaned dataset.
type Order struct {
	OrderID          string
	CustomerID       string
	CustomerUniqueID string
	CustomerCity     string
	CustomerState    string
	OrderStatus      string
	PurchasedAt      time.Time
	DeliveredAt      time.Time // zero when not delivered
	EstimatedAt      time.Time // zero when unknown
	ProductCategory  string
	PaymentType      string
	PaymentValue     float64
	Price            float64
	FreightValue     float64
}

// Delivered reports whether the order has a delivery timestamp.
func (o Order) Delivered() bool { return !o.DeliveredAt.IsZero() }

// DeliveryDays is the whole number of days from purchase to delivery,
// floored like a timedelta's days. NaN when the order was not delivered.
func (o Order) DeliveryDays() float64 {
	if !o.Delivered() {
		return math.NaN()
	}
	return math.Floor(o.DeliveredAt.Sub(o.PurchasedAt).Hours() / 24)
}

// DaysLate is delivered minus estimated, in whole days. NaN when either is missing.
func (o Order) DaysLate() float64 {
	if !o.Delivered() || o.EstimatedAt.IsZero() {
		return math.NaN()
	}
	return math.Floor(o.DeliveredAt.Sub(o.EstimatedAt).Hours() / 24)
}

// Dimension and measure keys exposed through View.
const (
	DimOrderID         = "order_id"
	DimCustomerID      = "customer_id"
	DimCustomerState   = "customer_state"
	DimCustomerCity    = "customer_city"
	DimOrderStatus     = "order_status"
	DimProductCategory = "product_category_name"
	DimPaymentType     = "payment_type"
	DimOrderMonth      = "order_month"
	DimOrderDate       = "order_date"
	DimOrderWeekday    = "order_weekday"

	MeasurePaymentValue = "payment_value"
	MeasurePrice        = "price"
	MeasureFreightValue = "freight_value"
	MeasureOrderHour    = "order_hour"
	MeasureDeliveryDays = "delivery_days"
	MeasureDaysLate     = "days_late"
	MeasureRecordCount  = "record_count"
)

// Layouts for the derived period dimensions.
const (
	MonthLayout = "2006-01"
	DateLayout  = "2006-01-02"
)

var adapter = engine.NewDomainAdapter[Order]().
	Dimension(DimOrderID, func(o Order) string { return o.OrderID }).
	Dimension(DimCustomerID, func(o Order) string { return o.CustomerID }).
	Dimension(DimCustomerState, func(o Order) string { return o.CustomerState }).
	Dimension(DimCustomerCity, func(o Order) string { return o.CustomerCity }).
	Dimension(DimOrderStatus, func(o Order) string { return o.OrderStatus }).
	Dimension(DimProductCategory, func(o Order) string { return o.ProductCategory }).
	Dimension(DimPaymentType, func(o Order) string { return o.PaymentType }).
	Dimension(DimOrderMonth, func(o Order) string { return o.PurchasedAt.Format(MonthLayout) }).
	Dimension(DimOrderDate, func(o Order) string { return o.PurchasedAt.Format(DateLayout) }).
	Dimension(DimOrderWeekday, func(o Order) string { return o.PurchasedAt.Weekday().String() }).
	Measure(MeasurePaymentValue, func(o Order) float64 { return o.PaymentValue }).
	Measure(MeasurePrice, func(o Order) float64 { return o.Price }).
	Measure(MeasureFreightValue, func(o Order) float64 { return o.FreightValue }).
	Measure(MeasureOrderHour, func(o Order) float64 { return float64(o.PurchasedAt.Hour()) }).
	Measure(MeasureDeliveryDays, Order.DeliveryDays).
	Measure(MeasureDaysLate, Order.DaysLate).
	Measure(MeasureRecordCount, func(Order) float64 { return 1 })

// BindView exposes a slice of orders as an engine.RecordView.
func BindView(rows []Order) engine.RecordView {
	return adapter.Bind(rows)
}
