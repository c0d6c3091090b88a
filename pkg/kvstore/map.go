package kvstore

import (
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/value"
)

// MetadataMapName is the reserved map in which the root package records
// the schema version that migrations have reached.
const MetadataMapName = "$nitrite_meta"

// Map is the ordered key→value contract every storage backend implements.
// Keys and values are both value.Value so that an index store (keys are
// index field values, values are id sets or sub-entries) and a collection
// store (keys are ids, values are documents) share one interface.
type Map interface {
	Name() string

	Get(key value.Value) (value.Value, bool)
	Put(key, val value.Value)
	PutIfAbsent(key, val value.Value) (value.Value, bool)
	Remove(key value.Value) (value.Value, bool)
	Clear()

	FirstKey() (value.Value, bool)
	LastKey() (value.Value, bool)
	HigherKey(key value.Value) (value.Value, bool)
	CeilingKey(key value.Value) (value.Value, bool)
	LowerKey(key value.Value) (value.Value, bool)
	FloorKey(key value.Value) (value.Value, bool)

	Ascend(fn func(key, val value.Value) bool)
	Descend(fn func(key, val value.Value) bool)

	Size() int
	IsEmpty() bool

	Attributes() (*document.Document, bool)
	SetAttributes(*document.Document)

	Close() error
	Dispose() error
	IsClosed() bool
	IsDropped() bool
}

// Store is a named collection of Maps plus the reserved metadata map. It
// models the "ordered key→value backend" boundary of spec.md §6: the
// document store itself is agnostic to which Store implementation backs it.
type Store interface {
	// Map returns (creating lazily if needed) the named map.
	Map(name string) (Map, error)
	// DropMap destroys a map and its underlying resource.
	DropMap(name string) error
	// MapNames lists currently open map names, excluding the metadata map.
	MapNames() []string
	Close() error
}
