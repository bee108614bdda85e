// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration on the stub backend.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests on the stub backend.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ExchangeDuration tracks chat exchange round trips.
	ExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qa_exchange_duration_seconds",
			Help:    "Chat exchange round trip duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	// ExchangesTotal tracks chat exchanges by outcome.
	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_exchanges_total",
			Help: "Total chat exchanges",
		},
		[]string{"outcome"},
	)

	// UploadsTotal tracks per-file upload and parse results.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_uploads_total",
			Help: "Total file uploads by content kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// MessagesTotal tracks messages appended to conversations.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_messages_total",
			Help: "Total messages appended",
		},
		[]string{"role"},
	)

	// StaleResponsesTotal tracks exchange responses dropped because a newer send superseded them.
	StaleResponsesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_stale_responses_total",
			Help: "Exchange responses discarded as superseded",
		},
	)

	// ChartExportsTotal tracks chart exports.
	ChartExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_chart_exports_total",
			Help: "Total chart exports",
		},
		[]string{"outcome"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordExchange records metrics for one chat exchange.
func RecordExchange(outcome string, duration float64) {
	ExchangeDuration.WithLabelValues(outcome).Observe(duration)
	ExchangesTotal.WithLabelValues(outcome).Inc()
}

// RecordUpload records the result of one file normalization.
func RecordUpload(kind, outcome string) {
	UploadsTotal.WithLabelValues(kind, outcome).Inc()
}
