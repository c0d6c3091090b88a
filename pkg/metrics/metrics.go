package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Collection metrics
	CollectionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nitrite_collections_total",
			Help: "Total number of open collections",
		},
	)

	DocumentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_documents_total",
			Help: "Total number of documents by collection",
		},
		[]string{"collection"},
	)

	IndexesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_indexes_total",
			Help: "Total number of indexes by collection and state",
		},
		[]string{"collection", "state"},
	)

	// Transaction metrics
	TransactionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nitrite_transactions_active",
			Help: "Number of currently active transactions",
		},
	)

	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nitrite_transactions_total",
			Help: "Total number of transactions by final state",
		},
		[]string{"state"},
	)

	TransactionCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nitrite_transaction_commit_duration_seconds",
			Help:    "Time taken to commit a transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransactionRollbackDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nitrite_transaction_rollback_duration_seconds",
			Help:    "Time taken to roll back a transaction in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Collection operation metrics
	InsertDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nitrite_insert_duration_seconds",
			Help:    "Time taken to insert documents in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	FindDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nitrite_find_duration_seconds",
			Help:    "Time taken to evaluate a find query in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	UpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nitrite_update_duration_seconds",
			Help:    "Time taken to update documents in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	RemoveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nitrite_remove_duration_seconds",
			Help:    "Time taken to remove documents in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// R-tree metrics
	RTreeHeight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_rtree_height",
			Help: "Current height of the disk R-tree by index",
		},
		[]string{"index"},
	)

	RTreeEntriesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_rtree_entries_total",
			Help: "Total number of entries stored in the disk R-tree by index",
		},
		[]string{"index"},
	)

	RTreeCachedPages = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_rtree_cached_pages",
			Help: "Number of R-tree pages currently resident in the LRU cache",
		},
		[]string{"index"},
	)

	// Reported as gauges rather than counters: the R-tree keeps its own
	// cumulative atomic counters and the collector samples their current
	// value rather than tracking deltas.
	RTreeCacheHitsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_rtree_cache_hits_total",
			Help: "Total R-tree page cache hits by index",
		},
		[]string{"index"},
	)

	RTreeCacheMissesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_rtree_cache_misses_total",
			Help: "Total R-tree page cache misses by index",
		},
		[]string{"index"},
	)

	RTreeDiskReadsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_rtree_disk_reads_total",
			Help: "Total R-tree page reads served from disk by index",
		},
		[]string{"index"},
	)

	RTreeDiskWritesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nitrite_rtree_disk_writes_total",
			Help: "Total R-tree page writes flushed to disk by index",
		},
		[]string{"index"},
	)

	RTreeSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nitrite_rtree_search_duration_seconds",
			Help:    "Time taken to evaluate an R-tree spatial query in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index"},
	)
)

func init() {
	prometheus.MustRegister(CollectionsTotal)
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(IndexesTotal)
	prometheus.MustRegister(TransactionsActive)
	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(TransactionCommitDuration)
	prometheus.MustRegister(TransactionRollbackDuration)
	prometheus.MustRegister(InsertDuration)
	prometheus.MustRegister(FindDuration)
	prometheus.MustRegister(UpdateDuration)
	prometheus.MustRegister(RemoveDuration)
	prometheus.MustRegister(RTreeHeight)
	prometheus.MustRegister(RTreeEntriesTotal)
	prometheus.MustRegister(RTreeCachedPages)
	prometheus.MustRegister(RTreeCacheHitsTotal)
	prometheus.MustRegister(RTreeCacheMissesTotal)
	prometheus.MustRegister(RTreeDiskReadsTotal)
	prometheus.MustRegister(RTreeDiskWritesTotal)
	prometheus.MustRegister(RTreeSearchDuration)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
