package kvstore

import (
	"sync"

	"github.com/google/btree"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/value"
)

const memMapDegree = 32

type memEntry struct {
	key value.Value
	val value.Value
}

func lessEntry(a, b memEntry) bool {
	return value.Less(a.key, b.key)
}

// MemMap is an in-memory ordered Map backed by a google/btree B-tree.
type MemMap struct {
	mu      sync.RWMutex
	name    string
	tree    *btree.BTreeG[memEntry]
	attrs   *document.Document
	closed  bool
	dropped bool
}

// NewMemMap creates an empty in-memory map named name.
func NewMemMap(name string) *MemMap {
	return &MemMap{
		name: name,
		tree: btree.NewG(memMapDegree, lessEntry),
	}
}

func (m *MemMap) Name() string { return m.name }

func (m *MemMap) checkOpen() error {
	if m.closed {
		return errClosed(m.name)
	}
	return nil
}

func (m *MemMap) Get(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.tree.Get(memEntry{key: key})
	if !ok {
		return value.Null(), false
	}
	return item.val, true
}

func (m *MemMap) Put(key, val value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.ReplaceOrInsert(memEntry{key: key, val: val})
}

func (m *MemMap) PutIfAbsent(key, val value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.tree.Get(memEntry{key: key}); ok {
		return existing.val, false
	}
	m.tree.ReplaceOrInsert(memEntry{key: key, val: val})
	return value.Null(), true
}

func (m *MemMap) Remove(key value.Value) (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.tree.Delete(memEntry{key: key})
	if !ok {
		return value.Null(), false
	}
	return item.val, true
}

func (m *MemMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree = btree.NewG(memMapDegree, lessEntry)
}

func (m *MemMap) FirstKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.tree.Min()
	if !ok {
		return value.Null(), false
	}
	return item.key, true
}

func (m *MemMap) LastKey() (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.tree.Max()
	if !ok {
		return value.Null(), false
	}
	return item.key, true
}

func (m *MemMap) HigherKey(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found value.Value
	ok := false
	m.tree.AscendGreaterOrEqual(memEntry{key: key}, func(e memEntry) bool {
		if value.Equal(e.key, key) {
			return true
		}
		found, ok = e.key, true
		return false
	})
	return found, ok
}

func (m *MemMap) CeilingKey(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found value.Value
	ok := false
	m.tree.AscendGreaterOrEqual(memEntry{key: key}, func(e memEntry) bool {
		found, ok = e.key, true
		return false
	})
	return found, ok
}

func (m *MemMap) LowerKey(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found value.Value
	ok := false
	m.tree.DescendLessOrEqual(memEntry{key: key}, func(e memEntry) bool {
		if value.Equal(e.key, key) {
			return true
		}
		found, ok = e.key, true
		return false
	})
	return found, ok
}

func (m *MemMap) FloorKey(key value.Value) (value.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found value.Value
	ok := false
	m.tree.DescendLessOrEqual(memEntry{key: key}, func(e memEntry) bool {
		found, ok = e.key, true
		return false
	})
	return found, ok
}

func (m *MemMap) Ascend(fn func(key, val value.Value) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.tree.Ascend(func(e memEntry) bool {
		return fn(e.key, e.val)
	})
}

func (m *MemMap) Descend(fn func(key, val value.Value) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.tree.Descend(func(e memEntry) bool {
		return fn(e.key, e.val)
	})
}

func (m *MemMap) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

func (m *MemMap) IsEmpty() bool { return m.Size() == 0 }

func (m *MemMap) Attributes() (*document.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attrs, m.attrs != nil
}

func (m *MemMap) SetAttributes(d *document.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attrs = d
}

func (m *MemMap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemMap) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.dropped = true
	m.tree = btree.NewG(memMapDegree, lessEntry)
	return nil
}

func (m *MemMap) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *MemMap) IsDropped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dropped
}
