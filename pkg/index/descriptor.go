package index

import "strings"

// Kind is the index variant, spec.md §3.
type Kind string

const (
	KindUnique    Kind = "unique"
	KindNonUnique Kind = "non_unique"
	KindFullText  Kind = "full_text"
	KindSpatial   Kind = "spatial"
)

// State is an index's build lifecycle, spec.md §3.
type State string

const (
	StateReady    State = "ready"
	StateBuilding State = "building"
	StateDropped  State = "dropped"
)

// Descriptor describes one index: its (ordered) field list, kind, and
// current build state.
type Descriptor struct {
	Fields []string
	Kind   Kind
	State  State
}

// key is the storage/lookup key for a descriptor, the comma-joined field
// list (compound indexes are addressed by their full field list).
func (d Descriptor) key() string { return strings.Join(d.Fields, ",") }
