// Package metrics provides Prometheus instrumentation for the database:
// collection/document/index gauges, transaction commit/rollback counters
// and duration histograms, per-operation (insert/find/update/remove)
// duration histograms, and disk R-tree gauges (height, entry count, cached
// pages, cache hit/miss and disk read/write counts sampled from the tree's
// own atomic counters).
//
// Metrics are registered against the global Prometheus registry at package
// init and exposed for scraping via Handler(). Collector periodically
// samples a StatsSource (spec.md §6's CollectionStats/RTreeStats/
// ActiveTransactions) into these gauges; Timer is a small helper for
// recording operation durations into a histogram or histogram vector.
package metrics
