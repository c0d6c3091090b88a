package filter

import (
	"regexp"
	"strings"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/value"
)

// IndexReader is the narrow view of an index's ordered key→id-set store
// that a Filter needs to resolve itself without importing pkg/index
// (which itself depends on pkg/filter to decide whether an index plan
// exists). A field's index, if any, supplies one of these.
type IndexReader interface {
	// Equals returns the id set stored under key, if any.
	Equals(key value.Value) (IDSet, bool)
	// Ascend visits (key, ids) pairs in ascending key order starting at
	// the first key >= from (or from the beginning if !fromOk).
	Ascend(from value.Value, fromOk bool, fn func(key value.Value, ids IDSet) bool)
	// Descend is the symmetric descending walk starting at the last key
	// <= from (or from the end if !fromOk).
	Descend(from value.Value, fromOk bool, fn func(key value.Value, ids IDSet) bool)
}

// IndexSource resolves a field's IndexReader, if that field carries a
// ready, non-text index usable for id-set resolution.
type IndexSource interface {
	Reader(field string) (IndexReader, bool)
}

// Filter is the polymorphic evaluation contract of spec.md §4.5.
type Filter interface {
	// ApplyOnDocument evaluates the filter against one document.
	ApplyOnDocument(doc *document.Document) (bool, error)
	// Fields lists the dotted field paths this filter's leaf predicates
	// reference (the "has-field" capability), for index-plan selection.
	Fields() []string
	// SupportsReverseScan reports whether this filter can drive a
	// descending index scan as naturally as an ascending one.
	SupportsReverseScan() bool
	// Children returns logical sub-filters (empty for leaves).
	Children() []Filter
	// ApplyOnIndex attempts to resolve this filter to an id set using src.
	// ok is false when no usable index exists and the caller must fall
	// back to evaluating ApplyOnDocument during a scan.
	ApplyOnIndex(src IndexSource) (ids IDSet, ok bool, err error)
}

// --- All ---

type allFilter struct{}

// All matches every document; it never resolves to an index plan.
func All() Filter { return allFilter{} }

func (allFilter) ApplyOnDocument(*document.Document) (bool, error) { return true, nil }
func (allFilter) Fields() []string                                 { return nil }
func (allFilter) SupportsReverseScan() bool                        { return true }
func (allFilter) Children() []Filter                                { return nil }
func (allFilter) ApplyOnIndex(IndexSource) (IDSet, bool, error)    { return nil, false, nil }

// --- Equality ---

type eqFilter struct {
	field string
	val   value.Value
}

// Eq matches documents whose field equals val.
func Eq(field string, val value.Value) Filter { return eqFilter{field: field, val: val} }

func (f eqFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	v, ok := doc.GetPath(f.field)
	if !ok {
		return false, nil
	}
	return value.Equal(v, f.val), nil
}
func (f eqFilter) Fields() []string          { return []string{f.field} }
func (f eqFilter) SupportsReverseScan() bool { return true }
func (f eqFilter) Children() []Filter        { return nil }
func (f eqFilter) ApplyOnIndex(src IndexSource) (IDSet, bool, error) {
	reader, ok := src.Reader(f.field)
	if !ok {
		return nil, false, nil
	}
	ids, ok := reader.Equals(f.val)
	if !ok {
		return IDSet{}, true, nil
	}
	return ids, true, nil
}

// --- Comparison (>, >=, <, <=) ---

type cmpOp int

const (
	OpGT cmpOp = iota
	OpGTE
	OpLT
	OpLTE
)

type cmpFilter struct {
	field string
	op    cmpOp
	val   value.Value
}

func Gt(field string, val value.Value) Filter  { return cmpFilter{field, OpGT, val} }
func Gte(field string, val value.Value) Filter { return cmpFilter{field, OpGTE, val} }
func Lt(field string, val value.Value) Filter  { return cmpFilter{field, OpLT, val} }
func Lte(field string, val value.Value) Filter { return cmpFilter{field, OpLTE, val} }

func (f cmpFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	v, ok := doc.GetPath(f.field)
	if !ok {
		return false, nil
	}
	c := value.Compare(v, f.val)
	switch f.op {
	case OpGT:
		return c > 0, nil
	case OpGTE:
		return c >= 0, nil
	case OpLT:
		return c < 0, nil
	default:
		return c <= 0, nil
	}
}
func (f cmpFilter) Fields() []string { return []string{f.field} }
func (f cmpFilter) SupportsReverseScan() bool { return true }
func (f cmpFilter) Children() []Filter        { return nil }
func (f cmpFilter) ApplyOnIndex(src IndexSource) (IDSet, bool, error) {
	reader, ok := src.Reader(f.field)
	if !ok {
		return nil, false, nil
	}
	out := make(IDSet)
	switch f.op {
	case OpGT:
		reader.Ascend(f.val, true, func(k value.Value, ids IDSet) bool {
			if value.Equal(k, f.val) {
				return true
			}
			for id := range ids {
				out.Add(id)
			}
			return true
		})
	case OpGTE:
		reader.Ascend(f.val, true, func(k value.Value, ids IDSet) bool {
			for id := range ids {
				out.Add(id)
			}
			return true
		})
	case OpLT:
		reader.Descend(f.val, true, func(k value.Value, ids IDSet) bool {
			if value.Equal(k, f.val) {
				return true
			}
			for id := range ids {
				out.Add(id)
			}
			return true
		})
	case OpLTE:
		reader.Descend(f.val, true, func(k value.Value, ids IDSet) bool {
			for id := range ids {
				out.Add(id)
			}
			return true
		})
	}
	return out, true, nil
}

// --- Between ---

type Bound struct {
	Value     value.Value
	Inclusive bool
}

type betweenFilter struct {
	field string
	lo    Bound
	hi    Bound
}

// Between matches field values within [lo, hi] (bounds open/closed per
// Inclusive), spec.md §4.5.
func Between(field string, lo, hi Bound) Filter {
	return betweenFilter{field: field, lo: lo, hi: hi}
}

func (f betweenFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	v, ok := doc.GetPath(f.field)
	if !ok {
		return false, nil
	}
	lc := value.Compare(v, f.lo.Value)
	if lc < 0 || (lc == 0 && !f.lo.Inclusive) {
		return false, nil
	}
	hc := value.Compare(v, f.hi.Value)
	if hc > 0 || (hc == 0 && !f.hi.Inclusive) {
		return false, nil
	}
	return true, nil
}
func (f betweenFilter) Fields() []string          { return []string{f.field} }
func (f betweenFilter) SupportsReverseScan() bool { return true }
func (f betweenFilter) Children() []Filter        { return nil }
func (f betweenFilter) ApplyOnIndex(src IndexSource) (IDSet, bool, error) {
	reader, ok := src.Reader(f.field)
	if !ok {
		return nil, false, nil
	}
	out := make(IDSet)
	reader.Ascend(f.lo.Value, true, func(k value.Value, ids IDSet) bool {
		lc := value.Compare(k, f.lo.Value)
		if lc == 0 && !f.lo.Inclusive {
			return true
		}
		hc := value.Compare(k, f.hi.Value)
		if hc > 0 || (hc == 0 && !f.hi.Inclusive) {
			return false
		}
		for id := range ids {
			out.Add(id)
		}
		return true
	})
	return out, true, nil
}

// --- In / NotIn ---

type inFilter struct {
	field string
	set   []value.Value
	negate bool
}

func In(field string, set []value.Value) Filter    { return inFilter{field: field, set: set} }
func NotIn(field string, set []value.Value) Filter { return inFilter{field: field, set: set, negate: true} }

func (f inFilter) member(v value.Value) bool {
	for _, s := range f.set {
		if value.Equal(v, s) {
			return true
		}
	}
	return false
}

func (f inFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	v, ok := doc.GetPath(f.field)
	if !ok {
		return f.negate, nil
	}
	m := f.member(v)
	if f.negate {
		return !m, nil
	}
	return m, nil
}
func (f inFilter) Fields() []string          { return []string{f.field} }
func (f inFilter) SupportsReverseScan() bool { return !f.negate }
func (f inFilter) Children() []Filter        { return nil }
func (f inFilter) ApplyOnIndex(src IndexSource) (IDSet, bool, error) {
	if f.negate {
		// not-in scans the complement; no index plan.
		return nil, false, nil
	}
	reader, ok := src.Reader(f.field)
	if !ok {
		return nil, false, nil
	}
	sets := make([]IDSet, 0, len(f.set))
	for _, v := range f.set {
		if ids, ok := reader.Equals(v); ok {
			sets = append(sets, ids)
		}
	}
	return Union(sets...), true, nil
}

// --- Regex ---

type regexFilter struct {
	field string
	re    *regexp.Regexp
}

// Regex compiles pattern and matches it against the field's string value.
// Regex never uses an index (spec.md §4.5).
func Regex(field, pattern string) (Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, nitriteerr.InvalidOperation("Invalid regex")
	}
	return regexFilter{field: field, re: re}, nil
}

func (f regexFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	v, ok := doc.GetPath(f.field)
	if !ok || v.Kind() != value.KindString {
		return false, nil
	}
	return f.re.MatchString(v.String()), nil
}
func (f regexFilter) Fields() []string          { return []string{f.field} }
func (f regexFilter) SupportsReverseScan() bool { return false }
func (f regexFilter) Children() []Filter        { return nil }
func (f regexFilter) ApplyOnIndex(IndexSource) (IDSet, bool, error) { return nil, false, nil }

// --- Text (exact / wildcard) ---

type textFilter struct {
	field   string
	pattern string
	prefix  bool
	suffix  bool
}

// Text matches an exact string, or a wildcard pattern with a leading and/or
// trailing '*' (prefix/suffix/containment). A bare "*" is rejected as a
// FilterError (spec.md §7): it is not a meaningful predicate.
func Text(field, pattern string) (Filter, error) {
	if pattern == "*" {
		return nil, nitriteerr.Filter("wildcard '*' cannot be the sole pattern")
	}
	prefix := strings.HasPrefix(pattern, "*")
	suffix := strings.HasSuffix(pattern, "*")
	trimmed := pattern
	if prefix {
		trimmed = strings.TrimPrefix(trimmed, "*")
	}
	if suffix {
		trimmed = strings.TrimSuffix(trimmed, "*")
	}
	return textFilter{field: field, pattern: trimmed, prefix: prefix, suffix: suffix}, nil
}

func (f textFilter) matches(s string) bool {
	switch {
	case f.prefix && f.suffix:
		return strings.Contains(s, f.pattern)
	case f.suffix:
		return strings.HasPrefix(s, f.pattern)
	case f.prefix:
		return strings.HasSuffix(s, f.pattern)
	default:
		return s == f.pattern
	}
}

func (f textFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	v, ok := doc.GetPath(f.field)
	if !ok || v.Kind() != value.KindString {
		return false, nil
	}
	return f.matches(v.String()), nil
}
func (f textFilter) Fields() []string          { return []string{f.field} }
func (f textFilter) SupportsReverseScan() bool { return !f.prefix && !f.suffix }
func (f textFilter) Children() []Filter        { return nil }

// ApplyOnIndex escalates wildcard text search to a prefix/suffix/
// containment scan of the index's key order: an exact (no wildcard)
// pattern uses Equals directly; a suffix-anchored pattern ("foo*") can use
// an ascending range scan from the prefix; a prefix-anchored or
// containment pattern has no ordered-scan shortcut and falls back.
func (f textFilter) ApplyOnIndex(src IndexSource) (IDSet, bool, error) {
	reader, ok := src.Reader(f.field)
	if !ok {
		return nil, false, nil
	}
	if !f.prefix && !f.suffix {
		ids, ok := reader.Equals(value.String(f.pattern))
		if !ok {
			return IDSet{}, true, nil
		}
		return ids, true, nil
	}
	if f.suffix && !f.prefix {
		out := make(IDSet)
		reader.Ascend(value.String(f.pattern), true, func(k value.Value, ids IDSet) bool {
			if k.Kind() != value.KindString || !strings.HasPrefix(k.String(), f.pattern) {
				return false
			}
			for id := range ids {
				out.Add(id)
			}
			return true
		})
		return out, true, nil
	}
	return nil, false, nil
}
