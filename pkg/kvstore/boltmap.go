package kvstore

import (
	"encoding/binary"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/value"
)

// BoltMap is a persistent ordered Map over one go.etcd.io/bbolt bucket.
// bbolt's own cursor (First/Last/Seek/Next/Prev) supplies the navigational
// contract directly; entries are stored as order-preserving key bytes
// (value.KeyBytes) mapping to a self-describing payload that carries both
// the original key and the value (value.Encode), so navigation can return
// the exact original key even though KeyBytes is lossy for nested kinds.
type BoltMap struct {
	mu      sync.RWMutex
	name    string
	db      *bolt.DB
	bucket  []byte
	closed  bool
	dropped bool
}

// NewBoltMap opens (creating if absent) a bucket named name in db.
func NewBoltMap(db *bolt.DB, name string) (*BoltMap, error) {
	bucket := []byte(name)
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, nitriteerr.IO("failed to open bucket "+name, err)
	}
	return &BoltMap{name: name, db: db, bucket: bucket}, nil
}

func (m *BoltMap) Name() string { return m.name }

func packEntry(key, val value.Value) []byte {
	kb := value.Encode(key)
	vb := value.Encode(val)
	out := make([]byte, 0, 10+len(kb)+len(vb))
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(len(kb)))
	out = append(out, tmp[:n]...)
	out = append(out, kb...)
	out = append(out, vb...)
	return out
}

func unpackEntry(data []byte) (key, val value.Value, err error) {
	klen, n := binary.Uvarint(data)
	pos := n
	key, _, err = value.Decode(data[pos : pos+int(klen)])
	if err != nil {
		return
	}
	pos += int(klen)
	val, _, err = value.Decode(data[pos:])
	return
}

func unpackValue(data []byte) (value.Value, error) {
	klen, n := binary.Uvarint(data)
	pos := n + int(klen)
	v, _, err := value.Decode(data[pos:])
	return v, err
}

func (m *BoltMap) Get(key value.Value) (value.Value, bool) {
	if m.IsClosed() {
		return value.Null(), false
	}
	kb := value.KeyBytes(key)
	var out value.Value
	found := false
	_ = m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		data := b.Get(kb)
		if data == nil {
			return nil
		}
		v, err := unpackValue(data)
		if err != nil {
			return err
		}
		out, found = v, true
		return nil
	})
	return out, found
}

func (m *BoltMap) Put(key, val value.Value) {
	if m.IsClosed() {
		return
	}
	kb := value.KeyBytes(key)
	entry := packEntry(key, val)
	_ = m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(m.bucket).Put(kb, entry)
	})
}

func (m *BoltMap) PutIfAbsent(key, val value.Value) (value.Value, bool) {
	kb := value.KeyBytes(key)
	var existing value.Value
	inserted := false
	_ = m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		if data := b.Get(kb); data != nil {
			v, err := unpackValue(data)
			if err != nil {
				return err
			}
			existing = v
			return nil
		}
		inserted = true
		return b.Put(kb, packEntry(key, val))
	})
	return existing, inserted
}

func (m *BoltMap) Remove(key value.Value) (value.Value, bool) {
	kb := value.KeyBytes(key)
	var prior value.Value
	found := false
	_ = m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(m.bucket)
		data := b.Get(kb)
		if data == nil {
			return nil
		}
		v, err := unpackValue(data)
		if err != nil {
			return err
		}
		prior, found = v, true
		return b.Delete(kb)
	})
	return prior, found
}

func (m *BoltMap) Clear() {
	_ = m.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(m.bucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(m.bucket)
		return err
	})
}

func (m *BoltMap) FirstKey() (value.Value, bool) {
	var out value.Value
	found := false
	_ = m.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(m.bucket).Cursor()
		k, v := c.First()
		if k == nil {
			return nil
		}
		key, _, err := unpackEntry(v)
		if err != nil {
			return err
		}
		out, found = key, true
		return nil
	})
	return out, found
}

func (m *BoltMap) LastKey() (value.Value, bool) {
	var out value.Value
	found := false
	_ = m.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(m.bucket).Cursor()
		k, v := c.Last()
		if k == nil {
			return nil
		}
		key, _, err := unpackEntry(v)
		if err != nil {
			return err
		}
		out, found = key, true
		return nil
	})
	return out, found
}

func (m *BoltMap) HigherKey(key value.Value) (value.Value, bool) {
	return m.seekStrict(key, true, false)
}

func (m *BoltMap) CeilingKey(key value.Value) (value.Value, bool) {
	return m.seekStrict(key, true, true)
}

func (m *BoltMap) LowerKey(key value.Value) (value.Value, bool) {
	return m.seekStrict(key, false, false)
}

func (m *BoltMap) FloorKey(key value.Value) (value.Value, bool) {
	return m.seekStrict(key, false, true)
}

// seekStrict implements the four directional navigators via bbolt's Seek,
// which lands on the first key >= the target.
func (m *BoltMap) seekStrict(key value.Value, ascending, inclusive bool) (value.Value, bool) {
	kb := value.KeyBytes(key)
	var out value.Value
	found := false
	_ = m.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(m.bucket).Cursor()
		k, v := c.Seek(kb)
		if ascending {
			if k == nil {
				return nil
			}
			ek, _, err := unpackEntry(v)
			if err != nil {
				return err
			}
			if !inclusive && value.Equal(ek, key) {
				k, v = c.Next()
				if k == nil {
					return nil
				}
				ek, _, err = unpackEntry(v)
				if err != nil {
					return err
				}
			}
			out, found = ek, true
			return nil
		}
		// descending: Seek lands at first key >= target, or nil/past-end
		// if none; step back once unless it's an exact inclusive match.
		if k == nil {
			k, v = c.Last()
			if k == nil {
				return nil
			}
			ek, _, err := unpackEntry(v)
			if err != nil {
				return err
			}
			out, found = ek, true
			return nil
		}
		ek, _, err := unpackEntry(v)
		if err != nil {
			return err
		}
		if value.Equal(ek, key) {
			if inclusive {
				out, found = ek, true
				return nil
			}
			k, v = c.Prev()
			if k == nil {
				return nil
			}
			ek, _, err = unpackEntry(v)
			if err != nil {
				return err
			}
			out, found = ek, true
			return nil
		}
		// Seek landed strictly after key (key itself absent): step back.
		k, v = c.Prev()
		if k == nil {
			return nil
		}
		ek, _, err = unpackEntry(v)
		if err != nil {
			return err
		}
		out, found = ek, true
		return nil
	})
	return out, found
}

func (m *BoltMap) Ascend(fn func(key, val value.Value) bool) {
	_ = m.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(m.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			ek, ev, err := unpackEntry(v)
			if err != nil {
				return err
			}
			if !fn(ek, ev) {
				return nil
			}
		}
		return nil
	})
}

func (m *BoltMap) Descend(fn func(key, val value.Value) bool) {
	_ = m.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(m.bucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			ek, ev, err := unpackEntry(v)
			if err != nil {
				return err
			}
			if !fn(ek, ev) {
				return nil
			}
		}
		return nil
	})
}

func (m *BoltMap) Size() int {
	n := 0
	_ = m.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(m.bucket).Stats().KeyN
		return nil
	})
	return n
}

func (m *BoltMap) IsEmpty() bool { return m.Size() == 0 }

var attrsKey = value.String("$attrs")

func (m *BoltMap) Attributes() (*document.Document, bool) {
	v, ok := m.Get(attrsKey)
	if !ok {
		return nil, false
	}
	d, ok := document.FromValue(v)
	return d, ok
}

func (m *BoltMap) SetAttributes(d *document.Document) {
	m.Put(attrsKey, d.AsValue())
}

func (m *BoltMap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *BoltMap) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.dropped = true
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket(m.bucket)
	})
}

func (m *BoltMap) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *BoltMap) IsDropped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dropped
}
