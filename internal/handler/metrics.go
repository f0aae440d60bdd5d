package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_webhook_events_total",
		Help: "Webhook events received, labelled by event type and outcome.",
	}, []string{"type", "outcome"})

	webhookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrollment_webhook_duration_seconds",
		Help:    "End-to-end webhook processing time.",
		Buckets: prometheus.DefBuckets,
	})
)
