// Package ecomdash is an e-commerce analytics dashboard.
//
// It loads one pre-cleaned CSV of orders (orders joined with customers,
// products and payments) and serves a fixed set of analyses over it:
// purchase patterns, delivery effectiveness, category and payment
// distributions, and a customer RFM (Recency / Frequency / Monetary) report.
//
// Layout:
//
//	orders/     CSV loading and the typed Order model
//	engine/     generic filter → group → aggregate → chart/table/text pipeline
//	rfm/        customer RFM computation, ordering and quintile scoring
//	dashboard/  the analysis pages built from engine queries
//	render/     PNG chart rendering
//	helpers/    CSV / XLSX / terminal table export
//	schema/     column discovery for arbitrary CSVs
//	server/     HTTP API + metrics
//	config/     viper-backed configuration
//	logging/    zap logger construction
//
// Everything is computed locally and in memory. The dataset is read once and
// never mutated.
package ecomdash
