package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stuga",
			Name:      "booking_created_total",
			Help:      "Count of bookings created, by double-booking flag.",
		},
		[]string{"double_booking"},
	)

	bookingDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stuga",
			Name:      "booking_deleted_total",
			Help:      "Count of bookings deleted.",
		},
	)

	conflictDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stuga",
			Name:      "conflict_detected_total",
			Help:      "Count of date-range conflicts surfaced to users.",
		},
	)

	permissionDenied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stuga",
			Name:      "permission_denied_total",
			Help:      "Count of operations rejected by the access policy.",
		},
	)

	remoteFailure = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stuga",
			Name:      "remote_failure_total",
			Help:      "Count of remote store failures, by operation.",
		},
		[]string{"operation"},
	)

	cacheFallback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stuga",
			Name:      "cache_fallback_total",
			Help:      "Count of reads served from the local snapshot cache.",
		},
	)

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stuga",
			Name:      "refresh_total",
			Help:      "Count of snapshot reconciliations, by trigger.",
		},
		[]string{"trigger"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stuga",
			Name:      "http_requests_total",
			Help:      "Count of API requests, by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingDeleted, conflictDetected,
			permissionDenied, remoteFailure, cacheFallback, refreshTotal,
			httpRequests,
		)
	})
}

func IncBookingCreated(doubleBooking bool) {
	label := "false"
	if doubleBooking {
		label = "true"
	}
	bookingCreated.WithLabelValues(label).Inc()
}

func IncBookingDeleted() {
	bookingDeleted.Inc()
}

func IncConflictDetected() {
	conflictDetected.Inc()
}

func IncPermissionDenied() {
	permissionDenied.Inc()
}

func IncRemoteFailure(operation string) {
	remoteFailure.WithLabelValues(operation).Inc()
}

func IncCacheFallback() {
	cacheFallback.Inc()
}

func IncRefresh(trigger string) {
	refreshTotal.WithLabelValues(trigger).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
