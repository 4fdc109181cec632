package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tix_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tix_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tix_booking_tx_seconds",
			Help:    "Duration of booking transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	BookingRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tix_booking_retries_total",
			Help: "Booking transactions retried after a write conflict",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tix_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tix_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
