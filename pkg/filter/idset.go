package filter

import "github.com/nitrited/nitrite/pkg/document"

// IDSet is an unordered set of document ids, the currency ApplyOnIndex
// trades in and that logical and/or compose over.
type IDSet map[document.ID]struct{}

func NewIDSet(ids ...document.ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(id document.ID) { s[id] = struct{}{} }
func (s IDSet) Has(id document.ID) bool {
	_, ok := s[id]
	return ok
}

// Intersect returns the set of ids present in every member of sets.
func Intersect(sets ...IDSet) IDSet {
	if len(sets) == 0 {
		return IDSet{}
	}
	smallest := sets[0]
	for _, s := range sets[1:] {
		if len(s) < len(smallest) {
			smallest = s
		}
	}
	out := make(IDSet, len(smallest))
	for id := range smallest {
		in := true
		for _, s := range sets {
			if !s.Has(id) {
				in = false
				break
			}
		}
		if in {
			out.Add(id)
		}
	}
	return out
}

// Union returns the set of ids present in any member of sets.
func Union(sets ...IDSet) IDSet {
	out := make(IDSet)
	for _, s := range sets {
		for id := range s {
			out.Add(id)
		}
	}
	return out
}

// Slice returns the set's members in no particular order.
func (s IDSet) Slice() []document.ID {
	out := make([]document.ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
