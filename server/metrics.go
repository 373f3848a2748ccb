package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics are registered on a private registry so tests can build many
// servers in one process.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     prometheus.Gauge
}

func newMetrics(reg *prometheus.Registry) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecomdash_http_requests_total",
				Help: "HTTP requests by route template and status code",
			},
			[]string{"route", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ecomdash_http_request_duration_seconds",
				Help:    "HTTP request latency by route template",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecomdash_dataset_rows",
			Help: "Order rows held in memory",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.rows)
	return m
}
