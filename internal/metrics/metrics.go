// Package metrics holds the process-wide Prometheus collectors for webhook delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "refundly"

// Delivery outcomes used as the "outcome" label.
const (
	OutcomeDelivered  = "delivered"
	OutcomeFailed     = "failed"
	OutcomeIneligible = "ineligible"
	OutcomeMalformed  = "malformed"
	OutcomeError      = "error"
)

// Delivery metrics
var (
	// DeliveriesTotal counts processed queue messages by variant and outcome.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Total number of webhook queue messages processed by outcome",
		},
		[]string{"variant", "outcome"},
	)

	// DeliveryDuration tracks the outbound HTTP call duration.
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "delivery_duration_seconds",
			Help:      "Outbound webhook callback duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"variant"},
	)

	// ResponseStatusTotal counts receiver responses by status class.
	ResponseStatusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "response_status_total",
			Help:      "Receiver responses by HTTP status class (2xx, 4xx, 5xx, transport)",
		},
		[]string{"variant", "class"},
	)
)

// Queue metrics
var (
	// MessagesPublishedTotal counts messages accepted by the broker.
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "messages_published_total",
			Help:      "Total number of webhook messages published by source",
		},
		[]string{"variant", "source"},
	)

	// ConsumersActive tracks how many queue consumers are running.
	ConsumersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "consumers_active",
			Help:      "Number of running queue consumers",
		},
	)
)

// Maintenance metrics
var (
	// RetentionDeletedTotal counts event rows removed by the retention cleaner.
	RetentionDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "retention_deleted_total",
			Help:      "Total number of webhook event rows deleted by retention",
		},
		[]string{"variant"},
	)
)

// StatusClass buckets an HTTP status for ResponseStatusTotal. Zero means no response.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "transport"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
