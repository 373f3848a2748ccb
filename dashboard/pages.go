package dashboard

import (
	"github.com/spektr-org/ecomdash/engine"
	"github.com/spektr-org/ecomdash/orders"
)

// ============================================================================
// PAGE DEFINITIONS
// ============================================================================
// Each page is a list of panels; each order panel is one engine QuerySpec.
// The rfm page is built from the customer report instead (see rfm.go).
// ============================================================================

// Page keys.
const (
	PagePurchasePatterns = "purchase-patterns"
	PageDelivery         = "delivery"
	PageCategories       = "categories"
	PagePayments         = "payments"
	PageRFM              = "rfm"
)

// PageInfo describes a page without computing it.
type PageInfo struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Panels      []string `json:"panels"`
}

type panelDef struct {
	key  string
	spec engine.QuerySpec
}

type pageDef struct {
	PageInfo
	panels func(cfg Config) []panelDef
}

func countBy(dim string) engine.QuerySpec {
	return engine.QuerySpec{
		Intent:      "chart",
		Aggregation: "count",
		Measure:     orders.MeasureRecordCount,
		GroupBy:     []string{dim},
	}
}

func purchasePatternPanels(cfg Config) []panelDef {
	monthly := countBy(orders.DimOrderMonth)
	monthly.Visualize = "line"
	monthly.SortBy = "chronological"
	monthly.Title = "Orders per month"
	monthly.XLabel = "Month"
	monthly.YLabel = "Orders"
	monthly.Reply = "{count} orders between {period}."

	weekday := countBy(orders.DimOrderWeekday)
	weekday.Visualize = "bar"
	weekday.SortBy = "value_desc"
	weekday.Title = "Orders by day of week"
	weekday.XLabel = "Day of week"
	weekday.YLabel = "Orders"
	weekday.Reply = "{top_category} is the busiest day with {top_amount} orders."

	hours := engine.QuerySpec{
		Intent:    "chart",
		Visualize: "histogram",
		Measure:   orders.MeasureOrderHour,
		Bins:      cfg.HourBins,
		Title:     "Order hour distribution",
		XLabel:    "Hour of day",
		YLabel:    "Orders",
		Reply:     "Purchases by hour of day across {count} orders.",
	}

	daily := countBy(orders.DimOrderDate)
	daily.Visualize = "line"
	daily.SortBy = "chronological"
	daily.Title = "Daily orders"
	daily.XLabel = "Date"
	daily.YLabel = "Orders"
	daily.Reply = "Daily order volume over {period}."

	growth := engine.QuerySpec{
		Intent:      "text",
		Aggregation: "growth",
		Measure:     orders.MeasureRecordCount,
		Title:       "Month-over-month orders",
		Reply:       "Monthly orders {direction} {growth_percent} from {previous_period} to {latest_period}.",
	}

	return []panelDef{
		{"orders-per-month", monthly},
		{"orders-per-weekday", weekday},
		{"order-hour", hours},
		{"daily-orders", daily},
		{"order-growth", growth},
	}
}

func deliveryPanels(cfg Config) []panelDef {
	avg := engine.QuerySpec{
		Intent:      "text",
		Aggregation: "avg",
		Measure:     orders.MeasureDeliveryDays,
		Title:       "Average delivery time",
		Reply:       "Orders take {avg} on average to arrive.",
	}
	dist := engine.QuerySpec{
		Intent:    "chart",
		Visualize: "histogram",
		Measure:   orders.MeasureDeliveryDays,
		Bins:      cfg.DeliveryBins,
		Title:     "Delivery time distribution",
		XLabel:    "Delivery days",
		YLabel:    "Orders",
		Reply:     "Delivery times range from {min} to {max}.",
	}
	return []panelDef{
		{"avg-delivery", avg},
		{"delivery-distribution", dist},
	}
}

func categoryPanels(cfg Config) []panelDef {
	top := countBy(orders.DimProductCategory)
	top.Visualize = "bar"
	top.SortBy = "value_desc"
	top.Limit = cfg.TopCategories
	top.Title = "Top product categories"
	top.XLabel = "Category"
	top.YLabel = "Orders"
	top.Reply = "{top_category} leads with {top_amount} orders."

	share := top
	share.Visualize = "pie"
	share.Title = "Top product categories share"
	share.Reply = "Share of orders among the top categories."

	return []panelDef{
		{"top-categories", top},
		{"category-share", share},
	}
}

func paymentPanels(Config) []panelDef {
	types := countBy(orders.DimPaymentType)
	types.Visualize = "bar"
	types.SortBy = "value_desc"
	types.Title = "Payment types"
	types.XLabel = "Payment type"
	types.YLabel = "Orders"
	types.Reply = "{top_category} is used for {top_amount} of {count} payments."

	value := engine.QuerySpec{
		Intent:      "table",
		Visualize:   "table",
		Aggregation: "sum",
		Measure:     orders.MeasurePaymentValue,
		GroupBy:     []string{orders.DimPaymentType},
		SortBy:      "value_desc",
		Title:       "Payment value by type",
		Reply:       "Total payments {total}.",
	}

	return []panelDef{
		{"payment-types", types},
		{"payment-value", value},
	}
}

var pageDefs = []pageDef{
	{
		PageInfo: PageInfo{
			Key:         PagePurchasePatterns,
			Title:       "Purchase patterns",
			Description: "When customers buy: monthly and daily volume, weekday and hour of day.",
		},
		panels: purchasePatternPanels,
	},
	{
		PageInfo: PageInfo{
			Key:         PageDelivery,
			Title:       "Delivery",
			Description: "Days from purchase to delivery for delivered orders.",
		},
		panels: deliveryPanels,
	},
	{
		PageInfo: PageInfo{
			Key:         PageCategories,
			Title:       "Product categories",
			Description: "Most ordered product categories.",
		},
		panels: categoryPanels,
	},
	{
		PageInfo: PageInfo{
			Key:         PagePayments,
			Title:       "Payment types",
			Description: "How customers pay.",
		},
		panels: paymentPanels,
	},
	{
		PageInfo: PageInfo{
			Key:         PageRFM,
			Title:       "RFM analysis",
			Description: "Customer recency, frequency and monetary value with segments.",
			Panels:      []string{PanelRFMTable, PanelRFMScatter, PanelRFMSegments},
		},
	},
}

func findPage(key string) (pageDef, bool) {
	for _, p := range pageDefs {
		if p.Key == key {
			return p, true
		}
	}
	return pageDef{}, false
}
