package rtree

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nitrited/nitrite/pkg/log"
)

// cachedPage is the LRU's value type: a decoded node plus its dirty bit.
// Node references by page id rather than live pointers across cache
// operations, per spec.md §9's "arena+indices" note: callers never hold a
// *Node past the point another cache operation could evict it without
// re-fetching.
type cachedPage struct {
	node  *Node
	dirty bool
}

// pageCache is the bounded LRU page cache of spec.md §4.6, wrapping
// hashicorp/golang-lru/v2. Eviction of a dirty page writes it through to
// the pager; a write failure during eviction is logged and the page is
// retained in pending so an explicit Flush can retry it, per spec.md §7's
// "the failing page remains dirty for a retry via flush".
type pageCache struct {
	pager *pager
	lru   *lru.Cache[uint64, *cachedPage]

	pendingMu sync.Mutex
	pending   map[uint64]*Node

	hits, misses   atomic.Uint64
	diskReads      atomic.Uint64
	diskWrites     atomic.Uint64
}

func newPageCache(p *pager, size int) (*pageCache, error) {
	c := &pageCache{pager: p, pending: make(map[uint64]*Node)}
	l, err := lru.NewWithEvict(size, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

func (c *pageCache) onEvict(id uint64, cp *cachedPage) {
	if !cp.dirty {
		return
	}
	if err := c.writeThrough(id, cp.node); err != nil {
		log.Errorf("rtree: failed to flush evicted page", err)
		c.pendingMu.Lock()
		c.pending[id] = cp.node
		c.pendingMu.Unlock()
		return
	}
}

func (c *pageCache) writeThrough(id uint64, n *Node) error {
	tag := nodeTypeInternal
	if n.IsLeaf() {
		tag = nodeTypeLeaf
	}
	buf, err := encodePage(tag, encodeNode(n), c.pager.pageSize)
	if err != nil {
		return err
	}
	if err := c.pager.writePageRaw(id, buf); err != nil {
		return err
	}
	c.diskWrites.Add(1)
	return nil
}

// get returns the node at id, loading it from disk on a cache miss. A
// page is read into a local buffer first (readPageRaw), then decoded and
// inserted under the LRU's own lock, so no lock is held across disk I/O.
func (c *pageCache) get(id uint64) (*Node, error) {
	if cp, ok := c.lru.Get(id); ok {
		c.hits.Add(1)
		return cp.node, nil
	}
	c.misses.Add(1)

	c.pendingMu.Lock()
	if n, ok := c.pending[id]; ok {
		c.pendingMu.Unlock()
		c.lru.Add(id, &cachedPage{node: n, dirty: true})
		return n, nil
	}
	c.pendingMu.Unlock()

	buf, err := c.pager.readPageRaw(id)
	if err != nil {
		return nil, err
	}
	tag, payload, err := decodePage(buf)
	if err != nil {
		return nil, err
	}
	node, err := decodeNode(tag, payload)
	if err != nil {
		return nil, err
	}
	c.diskReads.Add(1)
	c.lru.Add(id, &cachedPage{node: node, dirty: false})
	return node, nil
}

// put installs (or replaces) the cached node for id, marking it dirty so
// it is written through on eviction or the next flush.
func (c *pageCache) put(id uint64, n *Node) {
	c.lru.Add(id, &cachedPage{node: n, dirty: true})
}

// invalidate drops id from the cache without flushing it (used when a
// page is freed and its content no longer matters).
func (c *pageCache) invalidate(id uint64) {
	c.lru.Remove(id)
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// flush writes every dirty page (pending retries first, then everything
// still resident in the LRU) through to the pager.
func (c *pageCache) flush() error {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]*Node)
	c.pendingMu.Unlock()

	for id, n := range pending {
		if err := c.writeThrough(id, n); err != nil {
			c.pendingMu.Lock()
			c.pending[id] = n
			c.pendingMu.Unlock()
			return err
		}
	}

	for _, id := range c.lru.Keys() {
		cp, ok := c.lru.Peek(id)
		if !ok || !cp.dirty {
			continue
		}
		if err := c.writeThrough(id, cp.node); err != nil {
			return err
		}
		cp.dirty = false
	}
	return nil
}

func (c *pageCache) len() int { return c.lru.Len() }

// stats is a point-in-time snapshot of the cache's cumulative counters.
type stats struct {
	CacheHits, CacheMisses uint64
	DiskReads, DiskWrites  uint64
	CachedPages            int
}

func (c *pageCache) snapshot() stats {
	return stats{
		CacheHits:   c.hits.Load(),
		CacheMisses: c.misses.Load(),
		DiskReads:   c.diskReads.Load(),
		DiskWrites:  c.diskWrites.Load(),
		CachedPages: c.len(),
	}
}
