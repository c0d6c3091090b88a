package value

import (
	"bytes"
	"fmt"

	orderedmap "github.com/elliotchance/orderedmap/v2"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindArray
	KindDocument
	KindID
)

// Doc is the insertion-order field map backing a KindDocument Value. It is
// defined here (rather than in pkg/document) so that a Value can nest a
// document without an import cycle; pkg/document.Document wraps *Doc with
// the _id/_revision conventions of the data model.
type Doc = orderedmap.OrderedMap[string, Value]

// NewDoc returns an empty insertion-order field map.
func NewDoc() *Doc {
	return orderedmap.NewOrderedMap[string, Value]()
}

// Value is a tagged sum over the primitive types the database can store or
// index. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	by   []byte
	arr  []Value
	doc  *Doc
	id   uint64
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func Int32(v int32) Value        { return Value{kind: KindInt32, i: int64(v)} }
func Int64(v int64) Value        { return Value{kind: KindInt64, i: v} }
func Float32(v float32) Value    { return Value{kind: KindFloat32, f: float64(v)} }
func Float64(v float64) Value    { return Value{kind: KindFloat64, f: v} }
func String(v string) Value      { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value       { return Value{kind: KindBytes, by: v} }
func Array(v []Value) Value      { return Value{kind: KindArray, arr: v} }
func DocumentValue(d *Doc) Value { return Value{kind: KindDocument, doc: d} }
func ID(v uint64) Value          { return Value{kind: KindID, id: v} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Bool() bool    { return v.b }
func (v Value) Int() int64    { return v.i }
func (v Value) Float() float64 {
	return v.f
}
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNull:
		return "null"
	default:
		return fmt.Sprintf("%v", v.Raw())
	}
}
func (v Value) Bytes() []byte  { return v.by }
func (v Value) Array() []Value { return v.arr }
func (v Value) Doc() *Doc      { return v.doc }
func (v Value) IDValue() uint64 { return v.id }

// Raw returns the Go-native value underlying v, useful for logging and
// JSON-ish marshaling outside the hot comparison path.
func (v Value) Raw() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.by
	case KindArray:
		return v.arr
	case KindDocument:
		return v.doc
	case KindID:
		return v.id
	default:
		return nil
	}
}

// classRank orders kinds for cross-type comparison: null first, then
// booleans, then the numeric family (compared by numeric value regardless
// of width), then strings, bytes, arrays, documents, ids.
func classRank(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt32, KindInt64, KindFloat32, KindFloat64:
		return 2
	case KindString:
		return 3
	case KindBytes:
		return 4
	case KindArray:
		return 5
	case KindDocument:
		return 6
	case KindID:
		return 7
	default:
		return 8
	}
}

func isNumeric(k Kind) bool {
	switch k {
	case KindInt32, KindInt64, KindFloat32, KindFloat64:
		return true
	default:
		return false
	}
}

func (v Value) numeric() float64 {
	switch v.kind {
	case KindInt32, KindInt64:
		return float64(v.i)
	case KindFloat32, KindFloat64:
		return v.f
	default:
		return 0
	}
}

// Compare returns a negative number, zero, or a positive number as a sorts
// before, equal to, or after b. Null sorts before every other value;
// pkg/collection's descending sort reverses the comparands, which places
// nulls last.
func Compare(a, b Value) int {
	if a.kind == KindNull && b.kind == KindNull {
		return 0
	}
	if a.kind == KindNull {
		return -1
	}
	if b.kind == KindNull {
		return 1
	}
	if isNumeric(a.kind) && isNumeric(b.kind) {
		an, bn := a.numeric(), b.numeric()
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	ra, rb := classRank(a.kind), classRank(b.kind)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindString:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	case KindBytes:
		return bytes.Compare(a.by, b.by)
	case KindID:
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	case KindArray:
		return compareArrays(a.arr, b.arr)
	case KindDocument:
		return compareDocs(a.doc, b.doc)
	default:
		return 0
	}
}

func compareArrays(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// compareDocs compares documents field-by-field in a's insertion order,
// then falls back to field count. This is a total order suitable for
// index keys, not a semantic document equality.
func compareDocs(a, b *Doc) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	for el := a.Front(); el != nil; el = el.Next() {
		bv, ok := b.Get(el.Key)
		if !ok {
			return 1
		}
		if c := Compare(el.Value, bv); c != 0 {
			return c
		}
	}
	switch {
	case a.Len() < b.Len():
		return -1
	case a.Len() > b.Len():
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b compare equal under Compare.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// Less reports whether a sorts before b under Compare.
func Less(a, b Value) bool { return Compare(a, b) < 0 }
