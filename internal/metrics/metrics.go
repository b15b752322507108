// Package metrics exposes Prometheus metrics for the library service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Mutations      *prometheus.CounterVec
	FlushFailures  prometheus.Counter
	BlobsStored    prometheus.Counter
	BlobsCollected prometheus.Counter
	Submissions    prometheus.Counter
	SearchQueries  *prometheus.CounterVec
	Events         *prometheus.CounterVec
}

// NewCollector creates a collector on its own registry, so several services
// can live in one process (tests do this).
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "library_mutations_total",
				Help:      "Library mutations by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_flush_failures_total",
			Help:      "Document flushes that failed to persist",
		}),
		BlobsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blobs_stored_total",
			Help:      "Blobs written to the blob store",
		}),
		BlobsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blobs_collected_total",
			Help:      "Orphan blobs removed by collection",
		}),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_received_total",
			Help:      "Visitor submissions accepted",
		}),
		SearchQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Search queries by backend",
			},
			[]string{"backend"},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Library events delivered on the bus by type",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Mutations,
		c.FlushFailures,
		c.BlobsStored,
		c.BlobsCollected,
		c.Submissions,
		c.SearchQueries,
		c.Events,
	)
	return c
}

// Mutation counts one library operation.
func (c *Collector) Mutation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Mutations.WithLabelValues(operation, status).Inc()
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
