package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// CorrelationsTotal counts marketplace lookups by outcome:
	// priced, no_match, no_price, malformed_link, transient.
	CorrelationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "correlations_total",
			Help: "Total number of marketplace correlation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	GeoEnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_enrichments_total",
			Help: "Total number of listing geo enrichments by result.",
		},
		[]string{"result"}, // found, absent, error
	)

	SourceCrawlsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_crawls_total",
			Help: "Total number of source crawls by result.",
		},
		[]string{"result"}, // crawled, fresh, leased, or a failure kind
	)

	CrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawl_duration_seconds",
			Help:    "Duration of source crawls.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"host"},
	)

	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_writes_total",
			Help: "Total number of record writes by status.",
		},
		[]string{"status"}, // stored, degraded, snapshot, failed
	)
)
