package txmap

import (
	"sync"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/value"
)

// TransactionalMap is the three-layer (backing / primary / tombstones) view
// of spec.md §4.2. It implements kvstore.Map so the operations layer above
// can treat a transactional collection identically to a bare one.
type TransactionalMap struct {
	mu         sync.RWMutex
	name       string
	backing    *kvstore.MemMap
	primary    kvstore.Map
	tombstones *kvstore.MemMap
	cleared    bool
	localAttrs *document.Document
	closed     bool
}

// New wraps primary in a fresh TransactionalMap with empty backing and
// tombstones, as a Transaction does when a collection is first touched.
func New(name string, primary kvstore.Map) *TransactionalMap {
	return &TransactionalMap{
		name:       name,
		backing:    kvstore.NewMemMap(name + "$backing"),
		primary:    primary,
		tombstones: kvstore.NewMemMap(name + "$tombstones"),
	}
}

func (m *TransactionalMap) Name() string { return m.name }

func (m *TransactionalMap) isTombstoned(k value.Value) bool {
	_, ok := m.tombstones.Get(k)
	return ok
}

// Get never mutates backing (the memory-leak-avoidance invariant).
func (m *TransactionalMap) Get(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cleared || m.isTombstoned(key) {
		if v, ok := m.backing.Get(key); ok {
			return v, true
		}
		return value.Null(), false
	}
	if v, ok := m.backing.Get(key); ok {
		return v, true
	}
	return m.primary.Get(key)
}

func (m *TransactionalMap) Put(key, val value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tombstones.Remove(key)
	m.backing.Put(key, val)
}

func (m *TransactionalMap) PutIfAbsent(key, val value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.getLocked(key); ok {
		return existing, false
	}
	m.tombstones.Remove(key)
	m.backing.Put(key, val)
	return value.Null(), true
}

func (m *TransactionalMap) getLocked(key value.Value) (value.Value, bool) {
	if m.cleared || m.isTombstoned(key) {
		return m.backing.Get(key)
	}
	if v, ok := m.backing.Get(key); ok {
		return v, true
	}
	return m.primary.Get(key)
}

// Remove: if cleared or already tombstoned, nothing further is deleted.
// Otherwise remove from backing if present there; else read the prior
// value from primary; either way tombstone the key.
func (m *TransactionalMap) Remove(key value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cleared || m.isTombstoned(key) {
		if v, ok := m.backing.Remove(key); ok {
			return v, true
		}
		return value.Null(), false
	}
	if v, ok := m.backing.Remove(key); ok {
		m.tombstones.Put(key, value.Bool(true))
		return v, true
	}
	v, ok := m.primary.Get(key)
	m.tombstones.Put(key, value.Bool(true))
	return v, ok
}

func (m *TransactionalMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backing.Clear()
	m.tombstones.Clear()
	m.cleared = true
}

func (m *TransactionalMap) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := m.backing.Size()
	if !m.cleared {
		n += m.primary.Size() - m.tombstoneCountAgainstPrimary()
	}
	return n
}

// tombstoneCountAgainstPrimary returns tombstones.Size(). Remove also
// tombstones keys that were only in backing or in neither map, and those
// tombstones are subtracted from the primary's size as well.
func (m *TransactionalMap) tombstoneCountAgainstPrimary() int {
	return m.tombstones.Size()
}

func (m *TransactionalMap) IsEmpty() bool { return m.Size() == 0 }

// --- navigation ---

func (m *TransactionalMap) primaryHigher(k value.Value) (value.Value, bool) {
	if m.cleared {
		return value.Null(), false
	}
	cur := k
	for {
		cand, ok := m.primary.HigherKey(cur)
		if !ok {
			return value.Null(), false
		}
		if !m.isTombstoned(cand) {
			return cand, true
		}
		cur = cand
	}
}

func (m *TransactionalMap) primaryLower(k value.Value) (value.Value, bool) {
	if m.cleared {
		return value.Null(), false
	}
	cur := k
	for {
		cand, ok := m.primary.LowerKey(cur)
		if !ok {
			return value.Null(), false
		}
		if !m.isTombstoned(cand) {
			return cand, true
		}
		cur = cand
	}
}

func (m *TransactionalMap) primaryCeiling(k value.Value) (value.Value, bool) {
	if m.cleared {
		return value.Null(), false
	}
	cand, ok := m.primary.CeilingKey(k)
	if !ok {
		return value.Null(), false
	}
	if !m.isTombstoned(cand) {
		return cand, true
	}
	return m.primaryHigher(cand)
}

func (m *TransactionalMap) primaryFloor(k value.Value) (value.Value, bool) {
	if m.cleared {
		return value.Null(), false
	}
	cand, ok := m.primary.FloorKey(k)
	if !ok {
		return value.Null(), false
	}
	if !m.isTombstoned(cand) {
		return cand, true
	}
	return m.primaryLower(cand)
}

func (m *TransactionalMap) primaryFirst() (value.Value, bool) {
	if m.cleared {
		return value.Null(), false
	}
	cand, ok := m.primary.FirstKey()
	if !ok {
		return value.Null(), false
	}
	if !m.isTombstoned(cand) {
		return cand, true
	}
	return m.primaryHigher(cand)
}

func (m *TransactionalMap) primaryLast() (value.Value, bool) {
	if m.cleared {
		return value.Null(), false
	}
	cand, ok := m.primary.LastKey()
	if !ok {
		return value.Null(), false
	}
	if !m.isTombstoned(cand) {
		return cand, true
	}
	return m.primaryLower(cand)
}

func minKey(a value.Value, aOk bool, b value.Value, bOk bool) (value.Value, bool) {
	switch {
	case aOk && bOk:
		if value.Compare(a, b) <= 0 {
			return a, true
		}
		return b, true
	case aOk:
		return a, true
	case bOk:
		return b, true
	default:
		return value.Null(), false
	}
}

func maxKey(a value.Value, aOk bool, b value.Value, bOk bool) (value.Value, bool) {
	switch {
	case aOk && bOk:
		if value.Compare(a, b) >= 0 {
			return a, true
		}
		return b, true
	case aOk:
		return a, true
	case bOk:
		return b, true
	default:
		return value.Null(), false
	}
}

func (m *TransactionalMap) FirstKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, bOk := m.backing.FirstKey()
	p, pOk := m.primaryFirst()
	return minKey(b, bOk, p, pOk)
}

func (m *TransactionalMap) LastKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, bOk := m.backing.LastKey()
	p, pOk := m.primaryLast()
	return maxKey(b, bOk, p, pOk)
}

func (m *TransactionalMap) HigherKey(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, bOk := m.backing.HigherKey(key)
	p, pOk := m.primaryHigher(key)
	return minKey(b, bOk, p, pOk)
}

func (m *TransactionalMap) CeilingKey(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, bOk := m.backing.CeilingKey(key)
	p, pOk := m.primaryCeiling(key)
	return minKey(b, bOk, p, pOk)
}

func (m *TransactionalMap) LowerKey(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, bOk := m.backing.LowerKey(key)
	p, pOk := m.primaryLower(key)
	return maxKey(b, bOk, p, pOk)
}

func (m *TransactionalMap) FloorKey(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, bOk := m.backing.FloorKey(key)
	p, pOk := m.primaryFloor(key)
	return maxKey(b, bOk, p, pOk)
}

// Ascend drives the merged navigation forward from before the first key,
// per the design note that a cursor should be driven directly off the
// navigational primitives rather than chaining separate iterators.
func (m *TransactionalMap) Ascend(fn func(key, val value.Value) bool) {
	k, ok := m.FirstKey()
	for ok {
		v, present := m.Get(k)
		if present && !fn(k, v) {
			return
		}
		k, ok = m.HigherKey(k)
	}
}

func (m *TransactionalMap) Descend(fn func(key, val value.Value) bool) {
	k, ok := m.LastKey()
	for ok {
		v, present := m.Get(k)
		if present && !fn(k, v) {
			return
		}
		k, ok = m.LowerKey(k)
	}
}

func (m *TransactionalMap) Attributes() (*document.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.localAttrs != nil {
		return m.localAttrs, true
	}
	return m.primary.Attributes()
}

func (m *TransactionalMap) SetAttributes(d *document.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localAttrs = d
}

func (m *TransactionalMap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *TransactionalMap) Dispose() error {
	return m.Close()
}

func (m *TransactionalMap) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *TransactionalMap) IsDropped() bool { return false }
