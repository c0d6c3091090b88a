package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/rtree"
	"github.com/nitrited/nitrite/pkg/value"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager("widgets", kvstore.NewMemStore(), t.TempDir())
}

func iterOver(docs map[document.ID]*document.Document) DocIterator {
	return func(yield func(document.ID, *document.Document) bool) {
		for id, doc := range docs {
			if !yield(id, doc) {
				return
			}
		}
	}
}

func TestManager_CreateAndListNonUniqueIndex(t *testing.T) {
	m := newTestManager(t)

	docs := map[document.ID]*document.Document{
		1: docWithField("category", value.String("hardware")),
	}
	require.NoError(t, m.Create([]string{"category"}, KindNonUnique, iterOver(docs)))

	assert.True(t, m.Has([]string{"category"}))
	assert.False(t, m.IsIndexing([]string{"category"}))

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, StateReady, list[0].State)
}

func TestManager_CreateDuplicateFails(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Create([]string{"category"}, KindNonUnique, iterOver(nil)))
	err := m.Create([]string{"category"}, KindNonUnique, iterOver(nil))
	assert.Error(t, err)
}

func TestManager_CreateUniqueIndexFailsOnExistingConflict(t *testing.T) {
	m := newTestManager(t)

	docs := map[document.ID]*document.Document{
		1: docWithField("email", value.String("ada@example.com")),
		2: docWithField("email", value.String("ada@example.com")),
	}
	err := m.Create([]string{"email"}, KindUnique, iterOver(docs))
	assert.Error(t, err)
	assert.False(t, m.Has([]string{"email"}))
}

func TestManager_CreateSpatialIndex(t *testing.T) {
	m := newTestManager(t)

	docs := map[document.ID]*document.Document{
		1: docWithBbox("bbox", 0, 0, 1, 1),
	}
	require.NoError(t, m.Create([]string{"bbox"}, KindSpatial, iterOver(docs)))

	si, ok := m.Spatial([]string{"bbox"})
	require.True(t, ok)
	ids, err := si.Intersects(rtree.Bbox{MinX: -1000, MinY: -1000, MaxX: 1000, MaxY: 1000})
	require.NoError(t, err)
	assert.Contains(t, ids, document.ID(1))
}

func TestManager_DropRemovesNonUniqueIndex(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create([]string{"category"}, KindNonUnique, iterOver(nil)))

	require.NoError(t, m.Drop([]string{"category"}))
	assert.False(t, m.Has([]string{"category"}))
}

func TestManager_DropUnknownIndexFails(t *testing.T) {
	m := newTestManager(t)
	err := m.Drop([]string{"nope"})
	assert.Error(t, err)
}

func TestManager_IndexReturnsReaderForReadyIndex(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create([]string{"category"}, KindNonUnique, iterOver(nil)))

	ix, ok := m.Index([]string{"category"})
	require.True(t, ok)
	assert.Equal(t, KindNonUnique, ix.Descriptor().Kind)

	reader, ok := m.Reader("category")
	require.True(t, ok)
	readerIx, ok := reader.(*Index)
	require.True(t, ok)
	assert.Same(t, ix, readerIx)
}

func TestManager_ReaderIgnoresCompoundIndexes(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create([]string{"last", "first"}, KindNonUnique, iterOver(nil)))

	_, ok := m.Reader("last")
	assert.False(t, ok)
}

func TestManager_InsertDocRoutesToEveryIndex(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create([]string{"email"}, KindUnique, iterOver(nil)))
	require.NoError(t, m.Create([]string{"category"}, KindNonUnique, iterOver(nil)))

	doc := document.New()
	doc.Set("email", value.String("ada@example.com"))
	doc.Set("category", value.String("hardware"))

	require.NoError(t, m.InsertDoc(document.ID(1), doc))

	ix, _ := m.Index([]string{"email"})
	ids, ok := ix.Equals(value.String("ada@example.com"))
	require.True(t, ok)
	assert.True(t, ids.Has(document.ID(1)))
}

func TestManager_InsertDocRejectsUniqueViolation(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create([]string{"email"}, KindUnique, iterOver(nil)))

	doc1 := document.New()
	doc1.Set("email", value.String("ada@example.com"))
	require.NoError(t, m.InsertDoc(document.ID(1), doc1))

	doc2 := document.New()
	doc2.Set("email", value.String("ada@example.com"))
	err := m.InsertDoc(document.ID(2), doc2)
	assert.Error(t, err)
}

func TestManager_RemoveDocUnindexesFromEveryIndex(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create([]string{"category"}, KindNonUnique, iterOver(nil)))

	doc := docWithField("category", value.String("hardware"))
	require.NoError(t, m.InsertDoc(document.ID(1), doc))
	require.NoError(t, m.RemoveDoc(document.ID(1), doc))

	ix, _ := m.Index([]string{"category"})
	_, ok := ix.Equals(value.String("hardware"))
	assert.False(t, ok)
}

func TestManager_RebuildRecreatesIndexFromFreshDocs(t *testing.T) {
	m := newTestManager(t)
	initial := map[document.ID]*document.Document{
		1: docWithField("category", value.String("hardware")),
	}
	require.NoError(t, m.Create([]string{"category"}, KindNonUnique, iterOver(initial)))

	rebuilt := map[document.ID]*document.Document{
		2: docWithField("category", value.String("software")),
	}
	require.NoError(t, m.Rebuild([]string{"category"}, iterOver(rebuilt)))

	ix, ok := m.Index([]string{"category"})
	require.True(t, ok)
	_, hasOld := ix.Equals(value.String("hardware"))
	assert.False(t, hasOld)
	_, hasNew := ix.Equals(value.String("software"))
	assert.True(t, hasNew)
}

func TestManager_AllIndexReadersReturnsEveryReadyIndex(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create([]string{"category"}, KindNonUnique, iterOver(nil)))
	require.NoError(t, m.Create([]string{"email"}, KindUnique, iterOver(nil)))

	readers := m.AllIndexReaders()
	assert.Len(t, readers, 2)
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Create([]string{"bbox"}, KindSpatial, iterOver(nil)))
	assert.NoError(t, m.Close())
}
