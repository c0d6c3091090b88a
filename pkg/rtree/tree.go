package rtree

import (
	"os"
	"sync"

	"github.com/nitrited/nitrite/pkg/nitriteerr"
)

// RTree is the disk-resident spatial index of spec.md §4.6-4.7. Structural
// mutations (Insert, Remove, BulkLoad, Rebuild, Repair) take the tree's
// write lock; queries (Search, SearchContained, KNN, Stats) take the read
// lock, mirroring the per-collection RWLock policy of spec.md §5 applied
// to this index's own internal structure.
type RTree struct {
	mu     sync.RWMutex
	pager  *pager
	cache  *pageCache
	closed bool
}

// Create creates a new, empty R-tree file at path.
func Create(path string, opts Options) (*RTree, error) {
	resolved, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	p, err := createPager(path, resolved.PageSize)
	if err != nil {
		return nil, err
	}
	c, err := newPageCache(p, resolved.CachePages)
	if err != nil {
		p.close()
		return nil, err
	}
	return &RTree{pager: p, cache: c}, nil
}

// Open opens an existing R-tree file at path, running a format migration
// if the stored version is stale (spec.md §4.7).
func Open(path string, opts Options) (*RTree, error) {
	resolved, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	p, err := openPager(path)
	if err != nil {
		return nil, err
	}
	c, err := newPageCache(p, resolved.CachePages)
	if err != nil {
		p.close()
		return nil, err
	}
	return &RTree{pager: p, cache: c}, nil
}

// OpenOrCreate opens path if it exists, else creates it.
func OpenOrCreate(path string, opts Options) (*RTree, error) {
	if _, err := os.Stat(path); err == nil {
		return Open(path, opts)
	}
	return Create(path, opts)
}

func (t *RTree) checkOpen() error {
	if t.closed {
		return nitriteerr.Closed("rtree is closed")
	}
	return nil
}

// readNode loads a node through the page cache.
func (t *RTree) readNode(id uint64) (*Node, error) {
	return t.cache.get(id)
}

// writeNode installs n as the cached (dirty) content of page id.
func (t *RTree) writeNode(id uint64, n *Node) {
	t.cache.put(id, n)
}

// allocatePage hands out a fresh page id via the pager's free list /
// bump allocator.
func (t *RTree) allocatePage() (uint64, error) {
	return t.pager.allocatePage()
}

func (t *RTree) freePage(id uint64) error {
	t.cache.invalidate(id)
	return t.pager.freePage(id)
}

// Flush writes every dirty cached page through to disk without fsyncing.
func (t *RTree) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.cache.flush()
}

// Sync flushes dirty pages and fsyncs the underlying file (spec.md §3's
// page lifecycle: "all pages fsynced on sync").
func (t *RTree) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.cache.flush(); err != nil {
		return err
	}
	return t.pager.sync()
}

// Close flushes, syncs, and closes the underlying file. A second Close
// returns a Closed error (spec.md §4.7 failure semantics).
func (t *RTree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nitriteerr.Closed("rtree is already closed")
	}
	if err := t.cache.flush(); err != nil {
		return err
	}
	if err := t.pager.sync(); err != nil {
		return err
	}
	t.closed = true
	return t.pager.close()
}

// EntryCount returns the number of (bbox, id) entries currently stored.
func (t *RTree) EntryCount() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pager.snapshotHeader().EntryCount
}

// Height returns the tree's current height, 0 for an empty tree.
func (t *RTree) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(t.pager.snapshotHeader().Height)
}

// Stats is a snapshot of the R-tree's pager/cache counters (spec.md
// §4.6), matching the shape metrics.RTreeStats polls.
type Stats struct {
	Height       int
	TotalEntries uint64
	CachedPages  int
	CacheHits    uint64
	CacheMisses  uint64
	DiskReads    uint64
	DiskWrites   uint64
}

// Stats returns a point-in-time snapshot of the tree's statistics.
func (t *RTree) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h := t.pager.snapshotHeader()
	cs := t.cache.snapshot()
	return Stats{
		Height:       int(h.Height),
		TotalEntries: h.EntryCount,
		CachedPages:  cs.CachedPages,
		CacheHits:    cs.CacheHits,
		CacheMisses:  cs.CacheMisses,
		DiskReads:    cs.DiskReads,
		DiskWrites:   cs.DiskWrites,
	}
}

func (t *RTree) rootPage() uint64 {
	return t.pager.snapshotHeader().RootPage
}
