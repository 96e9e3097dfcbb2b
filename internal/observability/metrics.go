package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssb_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssb_reservations_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	SeatConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ssb_seat_conflicts_total",
			Help: "Reservations rejected because a seat was taken",
		},
	)

	ReserveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ssb_reserve_seconds",
			Help:    "Duration of the full reserve flow",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ssb_sweep_released_total",
			Help: "Bookings expired and released by the sweeper",
		},
	)

	PaymentFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ssb_payment_failures_total",
			Help: "Checkout session requests that failed",
		},
	)

	CatalogFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ssb_catalog_fallbacks_total",
			Help: "Catalog reads served from the persisted snapshot",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ssb_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
