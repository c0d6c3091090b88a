// Package rtree implements the disk-resident, paged, cached R-tree of
// spec.md §4.6-4.7: a checksummed page format, an LRU page cache backed by
// github.com/hashicorp/golang-lru/v2, a free list for page reuse, insert
// with node split and parent propagation, range/containment/KNN queries,
// Hilbert-sort bulk loading, fragmentation analysis, and integrity
// check/repair. It is the spatial-index backend a kind-Spatial
// index.Descriptor delegates to.
package rtree
