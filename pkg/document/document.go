package document

import (
	"strconv"
	"sync/atomic"

	"github.com/nitrited/nitrite/pkg/value"
)

// IDField and RevisionField are the reserved field names every Document
// carries once inserted into a collection.
const (
	IDField       = "_id"
	RevisionField = "_revision"
)

// ID is the 64-bit monotone integer identifier assigned to a document on
// insert. Its String form is the short canonical id used in logs and in
// filters that compare against a user-supplied id string.
type ID uint64

// String renders the id in base-36, matching the "short canonical string"
// requirement of spec.md §3 without needing a separate alphabet table.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 36)
}

// ParseID parses the canonical string form produced by ID.String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 36, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// Value renders id as a value.Value of kind KindID, for use as an index or
// map key alongside other Values.
func (id ID) Value() value.Value { return value.ID(uint64(id)) }

// Allocator hands out monotone ids for one collection. It is safe for
// concurrent use; Restore bumps the internal counter above any id observed
// on disk so that recovery never reissues an id.
type Allocator struct {
	next atomic.Uint64
}

// NewAllocator returns an allocator whose first Next() call yields 1.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next returns the next unused id.
func (a *Allocator) Next() ID {
	return ID(a.next.Add(1))
}

// Restore advances the allocator so that subsequent ids exceed observed,
// used when reopening a collection to avoid reissuing a persisted id.
func (a *Allocator) Restore(observed ID) {
	for {
		cur := a.next.Load()
		if uint64(observed) <= cur {
			return
		}
		if a.next.CompareAndSwap(cur, uint64(observed)) {
			return
		}
	}
}

// Document is an ordered field-name to value.Value mapping. The zero value
// is not usable; construct with New.
type Document struct {
	fields *value.Doc
}

// New returns an empty Document.
func New() *Document {
	return &Document{fields: value.NewDoc()}
}

// FromMap builds a Document from field values in the given order.
func FromMap(order []string, fields map[string]value.Value) *Document {
	d := New()
	for _, k := range order {
		d.Set(k, fields[k])
	}
	return d
}

// Get returns the value at a top-level field name.
func (d *Document) Get(field string) (value.Value, bool) {
	return d.fields.Get(field)
}

// Set assigns a top-level field, preserving first-insertion order for new
// fields and in-place order for existing ones.
func (d *Document) Set(field string, v value.Value) {
	d.fields.Set(field, v)
}

// Remove deletes a top-level field.
func (d *Document) Remove(field string) bool {
	return d.fields.Delete(field)
}

// Fields returns field names in insertion order.
func (d *Document) Fields() []string {
	out := make([]string, 0, d.fields.Len())
	for el := d.fields.Front(); el != nil; el = el.Next() {
		out = append(out, el.Key)
	}
	return out
}

// Len returns the number of top-level fields.
func (d *Document) Len() int { return d.fields.Len() }

// ID returns the document's _id field, if assigned.
func (d *Document) ID() (ID, bool) {
	v, ok := d.fields.Get(IDField)
	if !ok || v.Kind() != value.KindID {
		return 0, false
	}
	return ID(v.IDValue()), true
}

// SetID assigns the document's _id field.
func (d *Document) SetID(id ID) {
	d.fields.Set(IDField, id.Value())
}

// Revision returns the document's _revision field, if present.
func (d *Document) Revision() (int64, bool) {
	v, ok := d.fields.Get(RevisionField)
	if !ok {
		return 0, false
	}
	return v.Int(), true
}

// SetRevision assigns the document's _revision field.
func (d *Document) SetRevision(rev int64) {
	d.fields.Set(RevisionField, value.Int64(rev))
}

// Clone returns a shallow copy of d: top-level fields are copied into a new
// ordered map, but nested Value payloads (arrays, nested documents) are
// shared. This is sufficient for the copy-on-write semantics of pkg/txmap,
// which never mutates a Value in place.
func (d *Document) Clone() *Document {
	out := New()
	for el := d.fields.Front(); el != nil; el = el.Next() {
		out.fields.Set(el.Key, el.Value)
	}
	return out
}

// AsValue wraps d as a value.Value of kind KindDocument, for nesting inside
// another document's field or inside an array.
func (d *Document) AsValue() value.Value {
	return value.DocumentValue(d.fields)
}

// FromValue unwraps a KindDocument Value back into a *Document. ok is
// false if v is not a document.
func FromValue(v value.Value) (*Document, bool) {
	if v.Kind() != value.KindDocument {
		return nil, false
	}
	return &Document{fields: v.Doc()}, true
}

// GetPath resolves a dotted path (e.g. "address.city") against d, descending
// through nested documents and, for a numeric path segment, into arrays.
// It returns value.Null() and false if any segment cannot be resolved.
func (d *Document) GetPath(path string) (value.Value, bool) {
	segs := splitPath(path)
	var cur value.Value = d.AsValue()
	for _, seg := range segs {
		switch cur.Kind() {
		case value.KindDocument:
			nested, ok := FromValue(cur)
			if !ok {
				return value.Null(), false
			}
			v, ok := nested.Get(seg)
			if !ok {
				return value.Null(), false
			}
			cur = v
		case value.KindArray:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.Array()) {
				return value.Null(), false
			}
			cur = cur.Array()[idx]
		default:
			return value.Null(), false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	var out []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	out = append(out, path[start:])
	return out
}
