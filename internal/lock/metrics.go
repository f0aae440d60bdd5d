package lock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	locksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enrollment_locks_active",
		Help: "Number of lock-guarded critical sections currently running.",
	})

	lockAcquisitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_lock_acquisitions_total",
		Help: "Total number of successful lock acquisitions.",
	})

	lockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_lock_timeouts_total",
		Help: "Total number of lock waits that timed out.",
	})

	lockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrollment_lock_wait_seconds",
		Help:    "Time spent waiting to acquire a lock.",
		Buckets: prometheus.DefBuckets,
	})
)
