// Package metrics defines the Prometheus metrics exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gagbot"

// Fetch metrics.
var (
	FetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_total",
		Help:      "Stock fetches by outcome status.",
	}, []string{"status"})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of stock fetches in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	QuotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "quota_remaining",
		Help:      "Last known remaining request quota reported by the feed.",
	}, []string{"scope"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})

	CircuitBreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_transitions_total",
		Help:      "Circuit breaker state transitions.",
	}, []string{"name", "from", "to"})
)

// Monitor metrics.
var (
	PollInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "poll_interval_seconds",
		Help:      "Current sleep between stock polls.",
	})

	StockChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_changes_total",
		Help:      "Filtered stock changes detected.",
	})

	LowQuotaAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "low_quota_alerts_total",
		Help:      "Low-quota alerts raised.",
	})

	TrackedItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "tracked_items",
		Help:      "Number of items in the preference set.",
	})
)

// Delivery metrics.
var (
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Notification deliveries by kind and result.",
	}, []string{"kind", "result"})

	DeliveryRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_retries_total",
		Help:      "Notification send attempts after the first.",
	})
)

// Command metrics.
var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Handled chat commands and callbacks.",
	}, []string{"command"})
)
