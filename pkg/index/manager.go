package index

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/rtree"
)

// indexMapPrefix names the kvstore.Map backing one non-spatial index, kept
// out of a collection's own map namespace the way spec.md §6 reserves a
// fixed marker prefix for metadata/index tables.
const indexMapPrefix = "$nitrite_index_"

// DocIterator yields every document currently in a collection, used to
// build an index over existing data (spec.md §4.4 "create_index").
type DocIterator func(yield func(document.ID, *document.Document) bool)

// Manager owns every secondary index for one collection: creation,
// dropping, listing, and routing document mutations to every ready index
// (spec.md §4.4 E / §4.5 F).
type Manager struct {
	mu         sync.RWMutex
	collection string
	store      kvstore.Store
	rtreeDir   string
	rtreeOpts  rtree.Options

	indexes  map[string]*Index
	spatial  map[string]*SpatialIndex
	building map[string]bool
}

// NewManager returns a Manager for collection, storing non-spatial index
// data in store and spatial index files under rtreeDir (a temp directory
// is fine for an in-memory database).
func NewManager(collection string, store kvstore.Store, rtreeDir string) *Manager {
	return &Manager{
		collection: collection,
		store:      store,
		rtreeDir:   rtreeDir,
		rtreeOpts:  rtree.DefaultOptions(),
		indexes:    make(map[string]*Index),
		spatial:    make(map[string]*SpatialIndex),
		building:   make(map[string]bool),
	}
}

func (m *Manager) mapName(desc Descriptor) string {
	return indexMapPrefix + m.collection + "_" + desc.key()
}

func (m *Manager) rtreePath(desc Descriptor) string {
	safe := strings.ReplaceAll(desc.key(), string(filepath.Separator), "_")
	return filepath.Join(m.rtreeDir, m.collection+"_"+safe+".rtree")
}

// Create builds a new index over fields of the given kind, indexing every
// document docs yields. The index is marked building for the duration of
// the scan and ready on success (spec.md §4.4 "is_indexing").
func (m *Manager) Create(fields []string, kind Kind, docs DocIterator) error {
	desc := Descriptor{Fields: fields, Kind: kind, State: StateBuilding}
	key := desc.key()

	m.mu.Lock()
	if _, exists := m.indexes[key]; exists {
		m.mu.Unlock()
		return nitriteerr.InvalidOperation("index already exists on " + key)
	}
	if _, exists := m.spatial[key]; exists {
		m.mu.Unlock()
		return nitriteerr.InvalidOperation("index already exists on " + key)
	}
	m.building[key] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.building, key)
		m.mu.Unlock()
	}()

	if kind == KindSpatial {
		si, err := newSpatialIndex(desc, m.rtreePath(desc), m.rtreeOpts)
		if err != nil {
			return err
		}
		var buildErr error
		docs(func(id document.ID, doc *document.Document) bool {
			if err := si.Insert(id, doc); err != nil {
				buildErr = err
				return false
			}
			return true
		})
		if buildErr != nil {
			si.Close()
			return buildErr
		}
		desc.State = StateReady
		si.desc = desc
		m.mu.Lock()
		m.spatial[key] = si
		m.mu.Unlock()
		return nil
	}

	mapStore, err := m.store.Map(m.mapName(desc))
	if err != nil {
		return err
	}
	ix := newIndex(desc, mapStore)
	var conflict bool
	docs(func(id document.ID, doc *document.Document) bool {
		if !ix.Insert(id, doc) {
			conflict = true
			return false
		}
		return true
	})
	if conflict {
		m.store.DropMap(m.mapName(desc))
		return nitriteerr.InvalidOperation("unique index violation building index on " + key)
	}
	desc.State = StateReady
	ix.desc = desc
	m.mu.Lock()
	m.indexes[key] = ix
	m.mu.Unlock()
	return nil
}

// Drop removes the index over fields, discarding its underlying storage.
func (m *Manager) Drop(fields []string) error {
	key := Descriptor{Fields: fields}.key()
	m.mu.Lock()
	defer m.mu.Unlock()

	if ix, ok := m.indexes[key]; ok {
		delete(m.indexes, key)
		return m.store.DropMap(m.mapName(ix.desc))
	}
	if si, ok := m.spatial[key]; ok {
		delete(m.spatial, key)
		return si.Close()
	}
	return nitriteerr.NotFound("no index on " + key)
}

// List returns every index descriptor currently registered, ready or
// building.
func (m *Manager) List() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Descriptor, 0, len(m.indexes)+len(m.spatial))
	for _, ix := range m.indexes {
		out = append(out, ix.desc)
	}
	for _, si := range m.spatial {
		out = append(out, si.desc)
	}
	return out
}

// Has reports whether an index exists (building or ready) over fields.
func (m *Manager) Has(fields []string) bool {
	key := Descriptor{Fields: fields}.key()
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, a := m.indexes[key]
	_, b := m.spatial[key]
	_, c := m.building[key]
	return a || b || c
}

// IsIndexing reports whether an index over fields is currently building.
func (m *Manager) IsIndexing(fields []string) bool {
	key := Descriptor{Fields: fields}.key()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.building[key]
}

// Index returns the non-spatial index over fields, if one is ready.
func (m *Manager) Index(fields []string) (*Index, bool) {
	key := Descriptor{Fields: fields}.key()
	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, ok := m.indexes[key]
	return ix, ok
}

// Spatial returns the spatial index over fields, if one is ready.
func (m *Manager) Spatial(fields []string) (*SpatialIndex, bool) {
	key := Descriptor{Fields: fields}.key()
	m.mu.RLock()
	defer m.mu.RUnlock()
	si, ok := m.spatial[key]
	return si, ok
}

// Reader implements filter.IndexSource: it returns the ready single-field
// index over field, if one exists. Compound indexes are not considered —
// the filter planner only resolves single-field leaf predicates to an
// index plan (spec.md §4.5).
func (m *Manager) Reader(field string) (filter.IndexReader, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ix := range m.indexes {
		if ix.desc.State == StateReady && len(ix.desc.Fields) == 1 && ix.desc.Fields[0] == field {
			return ix, true
		}
	}
	return nil, false
}

// AllIndexReaders returns every ready non-spatial index, for the filter
// planner to consider when resolving a filter to an index plan.
func (m *Manager) AllIndexReaders() map[string]*Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Index, len(m.indexes))
	for k, v := range m.indexes {
		out[k] = v
	}
	return out
}

// Rebuild drops and recreates the index over fields from docs, used by
// "rebuild_index" and after bulk loads.
func (m *Manager) Rebuild(fields []string, docs DocIterator) error {
	key := Descriptor{Fields: fields}.key()
	m.mu.RLock()
	ix, hasIx := m.indexes[key]
	_, hasSi := m.spatial[key]
	m.mu.RUnlock()

	switch {
	case hasIx:
		kind := ix.desc.Kind
		if err := m.Drop(fields); err != nil {
			return err
		}
		return m.Create(fields, kind, docs)
	case hasSi:
		if err := m.Drop(fields); err != nil {
			return err
		}
		return m.Create(fields, KindSpatial, docs)
	default:
		return nitriteerr.NotFound("no index on " + key)
	}
}

// InsertDoc routes a newly inserted document to every ready index.
func (m *Manager) InsertDoc(id document.ID, doc *document.Document) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ix := range m.indexes {
		if ix.desc.Kind == KindUnique && !ix.Insert(id, doc) {
			return nitriteerr.InvalidOperation("unique index violation on " + ix.desc.key())
		}
	}
	for _, ix := range m.indexes {
		if ix.desc.Kind != KindUnique {
			ix.Insert(id, doc)
		}
	}
	for _, si := range m.spatial {
		if err := si.Insert(id, doc); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDoc un-indexes a removed document from every index.
func (m *Manager) RemoveDoc(id document.ID, doc *document.Document) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ix := range m.indexes {
		ix.Remove(id, doc)
	}
	for _, si := range m.spatial {
		if err := si.Remove(id, doc); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every spatial index's underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, si := range m.spatial {
		if err := si.Close(); err != nil {
			return err
		}
	}
	return nil
}
