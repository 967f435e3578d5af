// Package metrics provides Prometheus metrics for the lineage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ContextBuildsTotal tracks context builds by builder and outcome
	ContextBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "lineage",
			Name:      "context_builds_total",
			Help:      "Total number of lineage context builds by builder and status",
		},
		[]string{"builder", "status"},
	)

	// ContextBuildDuration tracks how long a build takes end to end
	ContextBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "willow",
			Subsystem: "lineage",
			Name:      "context_build_duration_seconds",
			Help:      "Duration of lineage context builds in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"builder"},
	)

	// ContextEdges tracks the size of built contexts
	ContextEdges = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "willow",
			Subsystem: "lineage",
			Name:      "context_edges",
			Help:      "Number of edges in built lineage contexts",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"builder"},
	)

	// RelationshipLookupsTotal tracks repository relationship lookups by type
	RelationshipLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "repository",
			Name:      "relationship_lookups_total",
			Help:      "Total number of relationship lookups by relationship type",
		},
		[]string{"relationship_type"},
	)

	// EntityLookupsTotal tracks repository entity fetches
	EntityLookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "repository",
			Name:      "entity_lookups_total",
			Help:      "Total number of entity detail lookups",
		},
	)

	// EventsPublishedTotal tracks lineage events sent to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of lineage events published by event type and status",
		},
		[]string{"event_type", "status"},
	)

	// NotificationsProcessedTotal tracks consumed entity-change notifications
	NotificationsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "processor",
			Name:      "notifications_processed_total",
			Help:      "Total number of entity-change notifications processed by action and status",
		},
		[]string{"action", "status"},
	)

	// TypeDefCacheTotal tracks type definition cache hits and misses
	TypeDefCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "willow",
			Subsystem: "typedefs",
			Name:      "cache_requests_total",
			Help:      "Total number of type definition cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordBuild records the outcome of one context build.
func RecordBuild(builder string, err error, seconds float64, edges int) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ContextBuildsTotal.WithLabelValues(builder, status).Inc()
	ContextBuildDuration.WithLabelValues(builder).Observe(seconds)
	if err == nil {
		ContextEdges.WithLabelValues(builder).Observe(float64(edges))
	}
}
