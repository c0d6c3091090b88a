package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/events"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/index"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/txn"
	"github.com/nitrited/nitrite/pkg/value"
)

// testCtx is a minimal Context, mirroring what *nitrite.Database provides
// without depending on the root package.
type testCtx struct {
	store      kvstore.Store
	locks      *txn.LockRegistry
	broker     *events.Broker
	allocators map[string]*document.Allocator
	indexes    map[string]*index.Manager
	rtreeDir   string
}

func newTestCtx(t *testing.T) *testCtx {
	t.Helper()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	return &testCtx{
		store:      kvstore.NewMemStore(),
		locks:      txn.NewLockRegistry(),
		broker:     broker,
		allocators: make(map[string]*document.Allocator),
		indexes:    make(map[string]*index.Manager),
		rtreeDir:   t.TempDir(),
	}
}

func (c *testCtx) Primary(name string) (kvstore.Map, error) { return c.store.Map(name) }

func (c *testCtx) Allocator(name string) *document.Allocator {
	a, ok := c.allocators[name]
	if !ok {
		a = document.NewAllocator()
		c.allocators[name] = a
	}
	return a
}

func (c *testCtx) Indexes(name string) *index.Manager {
	m, ok := c.indexes[name]
	if !ok {
		m = index.NewManager(name, c.store, c.rtreeDir)
		c.indexes[name] = m
	}
	return m
}

func (c *testCtx) Events() *events.Broker    { return c.broker }
func (c *testCtx) Locks() *txn.LockRegistry  { return c.locks }

func docWith(fields map[string]value.Value) *document.Document {
	d := document.New()
	for k, v := range fields {
		d.Set(k, v)
	}
	return d
}

func TestCollection_OpenRejectsReservedAndEmptyNames(t *testing.T) {
	ctx := newTestCtx(t)

	_, err := Open(ctx, "", nil)
	assert.Error(t, err)

	_, err = Open(ctx, "$nitrite_metadata", nil)
	assert.Error(t, err)

	_, err = Open(ctx, "widgets", nil)
	assert.NoError(t, err)
}

func TestCollection_InsertAssignsIDAndRevision(t *testing.T) {
	ctx := newTestCtx(t)
	coll, err := Open(ctx, "widgets", nil)
	require.NoError(t, err)

	doc := docWith(map[string]value.Value{"name": value.String("sprocket")})
	id, err := coll.Insert(doc)
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := coll.GetByID(id)
	require.NoError(t, err)
	rev, ok := got.Revision()
	require.True(t, ok)
	assert.Equal(t, int64(1), rev)
}

func TestCollection_InsertDuplicateIDFails(t *testing.T) {
	ctx := newTestCtx(t)
	coll, err := Open(ctx, "widgets", nil)
	require.NoError(t, err)

	doc := document.New()
	doc.SetID(document.ID(1))
	_, err = coll.Insert(doc)
	require.NoError(t, err)

	dup := document.New()
	dup.SetID(document.ID(1))
	_, err = coll.Insert(dup)
	assert.Error(t, err)
}

func TestCollection_UpdateByIDMergesFields(t *testing.T) {
	ctx := newTestCtx(t)
	coll, err := Open(ctx, "widgets", nil)
	require.NoError(t, err)

	id, err := coll.Insert(docWith(map[string]value.Value{
		"name": value.String("sprocket"),
		"size": value.Int64(1),
	}))
	require.NoError(t, err)

	update := docWith(map[string]value.Value{"size": value.Int64(2)})
	result, err := coll.UpdateByID(id, update, UpdateOptions{})
	require.NoError(t, err)

	nameV, ok := result.Get("name")
	require.True(t, ok)
	assert.Equal(t, "sprocket", nameV.String())
	sizeV, _ := result.Get("size")
	assert.Equal(t, int64(2), sizeV.Int())
}

func TestCollection_UpdateByIDReplaceDropsOldFields(t *testing.T) {
	ctx := newTestCtx(t)
	coll, err := Open(ctx, "widgets", nil)
	require.NoError(t, err)

	id, err := coll.Insert(docWith(map[string]value.Value{
		"name": value.String("sprocket"),
		"size": value.Int64(1),
	}))
	require.NoError(t, err)

	update := docWith(map[string]value.Value{"name": value.String("gizmo")})
	result, err := coll.UpdateByID(id, update, UpdateOptions{Replace: true})
	require.NoError(t, err)

	_, hasSize := result.Get("size")
	assert.False(t, hasSize)
	nameV, _ := result.Get("name")
	assert.Equal(t, "gizmo", nameV.String())
}

func TestCollection_RemoveOneRequiresID(t *testing.T) {
	ctx := newTestCtx(t)
	coll, err := Open(ctx, "widgets", nil)
	require.NoError(t, err)

	_, err = coll.RemoveOne(document.New())
	assert.Error(t, err)
}

func TestCollection_FindByIndexedEquality(t *testing.T) {
	ctx := newTestCtx(t)
	coll, err := Open(ctx, "widgets", nil)
	require.NoError(t, err)

	require.NoError(t, coll.CreateIndex([]string{"category"}, index.KindNonUnique))

	_, err = coll.Insert(docWith(map[string]value.Value{
		"name":     value.String("sprocket"),
		"category": value.String("hardware"),
	}))
	require.NoError(t, err)
	_, err = coll.Insert(docWith(map[string]value.Value{
		"name":     value.String("widget"),
		"category": value.String("software"),
	}))
	require.NoError(t, err)

	cur, err := coll.Find(filter.Eq("category", value.String("hardware")), FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, cur.Len())
	require.True(t, cur.Next())
	nameV, _ := cur.Document().Get("name")
	assert.Equal(t, "sprocket", nameV.String())
}

func TestCollection_DropIndexRemovesDescriptor(t *testing.T) {
	ctx := newTestCtx(t)
	coll, err := Open(ctx, "widgets", nil)
	require.NoError(t, err)

	require.NoError(t, coll.CreateIndex([]string{"category"}, index.KindNonUnique))
	assert.True(t, coll.HasIndex([]string{"category"}))

	require.NoError(t, coll.DropIndex([]string{"category"}))
	assert.False(t, coll.HasIndex([]string{"category"}))
}

func TestCollection_ClearRemovesAllDocuments(t *testing.T) {
	ctx := newTestCtx(t)
	coll, err := Open(ctx, "widgets", nil)
	require.NoError(t, err)

	_, err = coll.Insert(docWith(map[string]value.Value{"name": value.String("sprocket")}))
	require.NoError(t, err)

	require.NoError(t, coll.Clear())

	cur, err := coll.Find(filter.All(), FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, cur.Len())
}
