package filter

import (
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/value"
)

// scalarField is the synthetic field name elemMatch binds a scalar array
// element to, so a scalar can be matched with the same leaf filters
// (Eq("$", ...), Gt("$", ...)) used for document-array elements.
const scalarField = "$"

type elemMatchFilter struct {
	field string
	inner Filter
}

// ElemMatch matches a document whose array field has at least one element
// satisfying inner. inner is evaluated against the element directly if it
// is a document, or against a synthetic {"$": element} wrapper if it is a
// scalar. Nesting elemMatch inside elemMatch, or applying it over a text
// filter, is a FilterError (spec.md §4.5, §7).
func ElemMatch(field string, inner Filter) (Filter, error) {
	if containsElemMatchOrText(inner) {
		return nil, nitriteerr.Filter("elemMatch cannot nest elemMatch or wrap a text filter")
	}
	return elemMatchFilter{field: field, inner: inner}, nil
}

func containsElemMatchOrText(f Filter) bool {
	switch f.(type) {
	case elemMatchFilter, textFilter:
		return true
	}
	for _, c := range f.Children() {
		if containsElemMatchOrText(c) {
			return true
		}
	}
	return false
}

func (f elemMatchFilter) ApplyOnDocument(doc *document.Document) (bool, error) {
	v, ok := doc.GetPath(f.field)
	if !ok {
		return false, nil
	}
	if v.Kind() != value.KindArray {
		return false, nitriteerr.InvalidDataType("elemMatch requires an array field: " + f.field)
	}
	for _, elem := range v.Array() {
		var wrapper *document.Document
		if elem.Kind() == value.KindDocument {
			var ok bool
			wrapper, ok = document.FromValue(elem)
			if !ok {
				continue
			}
		} else {
			wrapper = document.New()
			wrapper.Set(scalarField, elem)
		}
		matched, err := f.inner.ApplyOnDocument(wrapper)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func (f elemMatchFilter) Fields() []string          { return []string{f.field} }
func (f elemMatchFilter) SupportsReverseScan() bool  { return false }
func (f elemMatchFilter) Children() []Filter         { return []Filter{f.inner} }
func (f elemMatchFilter) ApplyOnIndex(IndexSource) (IDSet, bool, error) {
	return nil, false, nil
}
