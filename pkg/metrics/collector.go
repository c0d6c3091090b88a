package metrics

import "time"

// CollectionStats is a snapshot of one collection's size and index states,
// as reported by the database for metrics collection.
type CollectionStats struct {
	Name          string
	DocumentCount int
	IndexStates   map[string]string // index field -> state (ready/building/dropped)
}

// RTreeStats is a snapshot of one spatial index's disk R-tree statistics.
type RTreeStats struct {
	IndexName    string
	Height       int
	TotalEntries int
	CachedPages  int
	CacheHits    uint64
	CacheMisses  uint64
	DiskReads    uint64
	DiskWrites   uint64
}

// StatsSource is implemented by the database handle the Collector polls.
// It is satisfied by *nitrite.Database without this package importing it,
// avoiding an import cycle between the root package and pkg/metrics.
type StatsSource interface {
	CollectionStats() []CollectionStats
	RTreeStats() []RTreeStats
	ActiveTransactions() int
}

// Collector periodically samples a StatsSource and updates the package's
// prometheus gauges. It owns no state beyond what's needed to stop its
// own ticker goroutine.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector for source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15-second ticker, in its own
// goroutine. An immediate collection happens before the first tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector's ticker goroutine.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectCollectionMetrics()
	c.collectTransactionMetrics()
	c.collectRTreeMetrics()
}

func (c *Collector) collectCollectionMetrics() {
	stats := c.source.CollectionStats()
	CollectionsTotal.Set(float64(len(stats)))

	for _, s := range stats {
		DocumentsTotal.WithLabelValues(s.Name).Set(float64(s.DocumentCount))
		perState := make(map[string]int)
		for _, state := range s.IndexStates {
			perState[state]++
		}
		for state, n := range perState {
			IndexesTotal.WithLabelValues(s.Name, state).Set(float64(n))
		}
	}
}

func (c *Collector) collectTransactionMetrics() {
	TransactionsActive.Set(float64(c.source.ActiveTransactions()))
}

func (c *Collector) collectRTreeMetrics() {
	for _, s := range c.source.RTreeStats() {
		RTreeHeight.WithLabelValues(s.IndexName).Set(float64(s.Height))
		RTreeEntriesTotal.WithLabelValues(s.IndexName).Set(float64(s.TotalEntries))
		RTreeCachedPages.WithLabelValues(s.IndexName).Set(float64(s.CachedPages))
		RTreeCacheHitsTotal.WithLabelValues(s.IndexName).Set(float64(s.CacheHits))
		RTreeCacheMissesTotal.WithLabelValues(s.IndexName).Set(float64(s.CacheMisses))
		RTreeDiskReadsTotal.WithLabelValues(s.IndexName).Set(float64(s.DiskReads))
		RTreeDiskWritesTotal.WithLabelValues(s.IndexName).Set(float64(s.DiskWrites))
	}
}
