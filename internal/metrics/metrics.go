package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_events_ingested_total",
		Help: "Domain events accepted by ingest, by type.",
	}, []string{"type"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_events_rejected_total",
		Help: "Domain events rejected by ingest, by reason.",
	}, []string{"reason"})

	DeliveryDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_delivery_decisions_total",
		Help: "Delivery decisions, by outcome.",
	}, []string{"outcome"})

	Pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_pushes_total",
		Help: "Push attempts by channel and result.",
	}, []string{"channel", "result"})

	DroppedPushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_pushes_dropped_total",
		Help: "Pushes dropped because a delivery shard was full.",
	})

	DigestEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_digest_entries_total",
		Help: "Digest queue entries by state.",
	}, []string{"state"})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_active_connections",
		Help: "Open realtime connections.",
	})

	SlowConnectionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_slow_connections_closed_total",
		Help: "Connections closed because their send buffer filled up.",
	})

	FeedSourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_source_failures_total",
		Help: "Aggregator source calls that failed or timed out.",
	}, []string{"source"})

	FeedSourceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_source_latency_seconds",
		Help:    "Aggregator source call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
)
