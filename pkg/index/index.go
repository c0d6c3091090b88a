package index

import (
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/value"
)

// Index is one secondary index: an ordered kvstore.Map from a field's
// (possibly compound) value to the set of document ids carrying it. It
// implements filter.IndexReader directly since the underlying Map already
// provides the ordered navigation a Filter's ApplyOnIndex needs.
type Index struct {
	desc  Descriptor
	store kvstore.Map
}

func newIndex(desc Descriptor, store kvstore.Map) *Index {
	return &Index{desc: desc, store: store}
}

func (ix *Index) Descriptor() Descriptor { return ix.desc }

func decodeIDSet(v value.Value) filter.IDSet {
	s := make(filter.IDSet)
	if v.Kind() != value.KindArray {
		return s
	}
	for _, e := range v.Array() {
		if e.Kind() == value.KindID {
			s.Add(document.ID(e.IDValue()))
		}
	}
	return s
}

func encodeIDSet(s filter.IDSet) value.Value {
	arr := make([]value.Value, 0, len(s))
	for id := range s {
		arr = append(arr, id.Value())
	}
	return value.Array(arr)
}

// keyFor builds the index key for one indexed document: a single field
// value for a simple index, or a value.Array for a compound one.
func (ix *Index) keyFor(doc *document.Document) (value.Value, bool) {
	if len(ix.desc.Fields) == 1 {
		return doc.GetPath(ix.desc.Fields[0])
	}
	vals := make([]value.Value, 0, len(ix.desc.Fields))
	for _, f := range ix.desc.Fields {
		v, ok := doc.GetPath(f)
		if !ok {
			return value.Null(), false
		}
		vals = append(vals, v)
	}
	return value.Array(vals), true
}

// Insert indexes doc under id. For a unique index, inserting a second id
// under the same key is a conflict and returns ok=false. A full-text index
// tokenizes the field's string value and indexes doc under every distinct
// token instead of the field's raw value.
func (ix *Index) Insert(id document.ID, doc *document.Document) (ok bool) {
	if ix.desc.Kind == KindFullText {
		for _, token := range ix.tokensFor(doc) {
			ix.addToSet(value.String(token), id)
		}
		return true
	}

	key, present := ix.keyFor(doc)
	if !present {
		return true
	}
	existing, found := ix.store.Get(key)
	set := decodeIDSet(existing)
	if !found {
		set = make(filter.IDSet)
	}
	if ix.desc.Kind == KindUnique && len(set) > 0 && !set.Has(id) {
		return false
	}
	set.Add(id)
	ix.store.Put(key, encodeIDSet(set))
	return true
}

// Remove un-indexes doc's key entry for id.
func (ix *Index) Remove(id document.ID, doc *document.Document) {
	if ix.desc.Kind == KindFullText {
		for _, token := range ix.tokensFor(doc) {
			ix.removeFromSet(value.String(token), id)
		}
		return
	}

	key, present := ix.keyFor(doc)
	if !present {
		return
	}
	ix.removeFromSet(key, id)
}

func (ix *Index) addToSet(key value.Value, id document.ID) {
	existing, found := ix.store.Get(key)
	set := decodeIDSet(existing)
	if !found {
		set = make(filter.IDSet)
	}
	set.Add(id)
	ix.store.Put(key, encodeIDSet(set))
}

func (ix *Index) removeFromSet(key value.Value, id document.ID) {
	existing, found := ix.store.Get(key)
	if !found {
		return
	}
	set := decodeIDSet(existing)
	delete(set, id)
	if len(set) == 0 {
		ix.store.Remove(key)
		return
	}
	ix.store.Put(key, encodeIDSet(set))
}

// tokensFor tokenizes a full-text index's single field value; non-string
// and missing values produce no tokens.
func (ix *Index) tokensFor(doc *document.Document) []string {
	if len(ix.desc.Fields) == 0 {
		return nil
	}
	v, ok := doc.GetPath(ix.desc.Fields[0])
	if !ok || v.Kind() != value.KindString {
		return nil
	}
	return tokenize(v.String())
}

// --- filter.IndexReader ---

func (ix *Index) Equals(key value.Value) (filter.IDSet, bool) {
	v, ok := ix.store.Get(key)
	if !ok {
		return nil, false
	}
	return decodeIDSet(v), true
}

func (ix *Index) Ascend(from value.Value, fromOk bool, fn func(key value.Value, ids filter.IDSet) bool) {
	var k value.Value
	var ok bool
	if fromOk {
		k, ok = ix.store.CeilingKey(from)
	} else {
		k, ok = ix.store.FirstKey()
	}
	for ok {
		v, _ := ix.store.Get(k)
		if !fn(k, decodeIDSet(v)) {
			return
		}
		k, ok = ix.store.HigherKey(k)
	}
}

func (ix *Index) Descend(from value.Value, fromOk bool, fn func(key value.Value, ids filter.IDSet) bool) {
	var k value.Value
	var ok bool
	if fromOk {
		k, ok = ix.store.FloorKey(from)
	} else {
		k, ok = ix.store.LastKey()
	}
	for ok {
		v, _ := ix.store.Get(k)
		if !fn(k, decodeIDSet(v)) {
			return
		}
		k, ok = ix.store.LowerKey(k)
	}
}
