package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache reads served without a fetch
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_cache_hits_total",
			Help: "Total number of cache reads served from a fresh entry",
		},
		[]string{"family"},
	)

	// CacheMisses tracks reads that required a fetch
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_cache_misses_total",
			Help: "Total number of cache reads that triggered a fetch",
		},
		[]string{"family"},
	)

	// Fetches tracks completed fetches per family and outcome
	Fetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_fetches_total",
			Help: "Total number of completed fetches",
		},
		[]string{"family", "outcome"},
	)

	// FetchLatency tracks fetch duration
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncengine_fetch_latency_seconds",
			Help:    "Fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"family"},
	)

	// Retries tracks retry attempts per error kind
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_retries_total",
			Help: "Total number of retry attempts",
		},
		[]string{"kind"},
	)

	// Mutations tracks mutation outcomes
	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_mutations_total",
			Help: "Total number of mutations by outcome",
		},
		[]string{"name", "outcome"},
	)

	// Rollbacks tracks optimistic rollbacks
	Rollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_rollbacks_total",
			Help: "Total number of optimistic patch rollbacks",
		},
		[]string{"name"},
	)

	// Invalidations tracks cascading invalidations per mutation trigger
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_invalidations_total",
			Help: "Total number of cache invalidations",
		},
		[]string{"trigger"},
	)

	// OfflineQueueDepth tracks the persisted mutation queue length
	OfflineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncengine_offline_queue_depth",
			Help: "Number of mutations waiting for replay",
		},
	)

	// CacheEvictions tracks garbage collected entries
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_cache_evictions_total",
			Help: "Total number of garbage collected cache entries",
		},
		[]string{"family"},
	)
)
