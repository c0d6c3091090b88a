package filter

import (
	"github.com/nitrited/nitrite/pkg/document"
)

type andFilter struct{ children []Filter }
type orFilter struct{ children []Filter }
type notFilter struct{ child Filter }

// And intersects id sets on an index plan and requires every child on a
// document scan.
func And(children ...Filter) Filter { return andFilter{children: children} }

// Or unions id sets on an index plan and requires any child on a document
// scan.
func Or(children ...Filter) Filter { return orFilter{children: children} }

// Not scans the complement; it never resolves to an index plan
// (spec.md §4.5).
func Not(child Filter) Filter { return notFilter{child: child} }

func (f andFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	for _, c := range f.children {
		ok, err := c.ApplyOnDocument(doc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
func (f andFilter) Fields() []string {
	var out []string
	for _, c := range f.children {
		out = append(out, c.Fields()...)
	}
	return out
}
func (f andFilter) SupportsReverseScan() bool {
	for _, c := range f.children {
		if !c.SupportsReverseScan() {
			return false
		}
	}
	return true
}
func (f andFilter) Children() []Filter { return f.children }

// ApplyOnIndex picks an index plan whenever at least one leaf child has a
// matching index, intersecting resolvable children; unresolved children
// are left as residual predicates for the caller to re-check in memory.
func (f andFilter) ApplyOnIndex(src IndexSource) (IDSet, bool, error) {
	var sets []IDSet
	for _, c := range f.children {
		ids, ok, err := c.ApplyOnIndex(src)
		if err != nil {
			return nil, false, err
		}
		if ok {
			sets = append(sets, ids)
		}
	}
	if len(sets) == 0 {
		return nil, false, nil
	}
	return Intersect(sets...), true, nil
}

func (f orFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	for _, c := range f.children {
		ok, err := c.ApplyOnDocument(doc)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
func (f orFilter) Fields() []string {
	var out []string
	for _, c := range f.children {
		out = append(out, c.Fields()...)
	}
	return out
}
func (f orFilter) SupportsReverseScan() bool {
	for _, c := range f.children {
		if !c.SupportsReverseScan() {
			return false
		}
	}
	return true
}
func (f orFilter) Children() []Filter { return f.children }

// ApplyOnIndex requires every child to resolve via an index: a residual
// (non-indexable) child under an `or` cannot be safely excluded from the
// union, so the whole `or` falls back to a scan in that case.
func (f orFilter) ApplyOnIndex(src IndexSource) (IDSet, bool, error) {
	sets := make([]IDSet, 0, len(f.children))
	for _, c := range f.children {
		ids, ok, err := c.ApplyOnIndex(src)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		sets = append(sets, ids)
	}
	return Union(sets...), true, nil
}

func (f notFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	ok, err := f.child.ApplyOnDocument(doc)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
func (f notFilter) Fields() []string                   { return f.child.Fields() }
func (f notFilter) SupportsReverseScan() bool           { return f.child.SupportsReverseScan() }
func (f notFilter) Children() []Filter                  { return []Filter{f.child} }
func (f notFilter) ApplyOnIndex(IndexSource) (IDSet, bool, error) { return nil, false, nil }

// --- Id equality ---

type idFilter struct{ id document.ID }

// IDEq matches a document by its synthetic _id.
func IDEq(id document.ID) Filter { return idFilter{id: id} }

func (f idFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	id, ok := doc.ID()
	return ok && id == f.id, nil
}
func (f idFilter) Fields() []string          { return []string{document.IDField} }
func (f idFilter) SupportsReverseScan() bool { return true }
func (f idFilter) Children() []Filter        { return nil }
func (f idFilter) ApplyOnIndex(src IndexSource) (IDSet, bool, error) {
	return NewIDSet(f.id), true, nil
}
