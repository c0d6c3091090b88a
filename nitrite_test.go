package nitrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/repository"
	"github.com/nitrited/nitrite/pkg/value"
)

func openMem(t *testing.T) *Database {
	t.Helper()
	db, err := Open(DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_InMemoryDefaults(t *testing.T) {
	db, err := Open(DefaultOptions())
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, InMemory, db.opts.StorageKind)
	assert.Equal(t, ".", db.opts.FieldSeparator)
}

func TestOpen_PersistentRequiresDataDir(t *testing.T) {
	_, err := Open(Options{StorageKind: Persistent})
	assert.Error(t, err)
}

func TestOpen_CredentialsGate(t *testing.T) {
	required := &Credentials{Username: "root", Password: "secret"}

	_, err := Open(Options{StorageKind: InMemory, RequireCredentials: required})
	assert.Error(t, err)

	_, err = Open(Options{
		StorageKind:        InMemory,
		RequireCredentials: required,
		Credentials:        &Credentials{Username: "root", Password: "wrong"},
	})
	assert.Error(t, err)

	db, err := Open(Options{
		StorageKind:        InMemory,
		RequireCredentials: required,
		Credentials:        &Credentials{Username: "root", Password: "secret"},
	})
	require.NoError(t, err)
	defer db.Close()
}

func TestOpen_AppliesMigrationsInOrder(t *testing.T) {
	var order []int
	opts := DefaultOptions()
	opts.Migrations = []Migration{
		{Version: 2, Up: func(*Database) error { order = append(order, 2); return nil }},
		{Version: 1, Up: func(*Database) error { order = append(order, 1); return nil }},
	}
	db, err := Open(opts)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, []int{1, 2}, order)
}

func TestOpenOrCreate_IsAliasForOpen(t *testing.T) {
	db, err := OpenOrCreate(DefaultOptions())
	require.NoError(t, err)
	defer db.Close()
	assert.NotNil(t, db)
}

func TestCollection_InsertAndGetByID(t *testing.T) {
	db := openMem(t)

	coll, err := db.Collection("widgets")
	require.NoError(t, err)

	doc := document.New()
	doc.Set("name", value.String("sprocket"))
	id, err := coll.Insert(doc)
	require.NoError(t, err)

	got, err := coll.GetByID(id)
	require.NoError(t, err)
	v, ok := got.Get("name")
	require.True(t, ok)
	assert.Equal(t, "sprocket", v.String())
}

func TestAllocator_RestoresAboveHighestPersistedID(t *testing.T) {
	db := openMem(t)

	coll, err := db.Collection("widgets")
	require.NoError(t, err)

	doc := document.New()
	doc.Set("name", value.String("first"))
	firstID, err := coll.Insert(doc)
	require.NoError(t, err)

	// Force a fresh Allocator lookup, as would happen on reopen.
	db.mu.Lock()
	delete(db.allocators, "widgets")
	db.mu.Unlock()

	second := document.New()
	second.Set("name", value.String("second"))
	secondID, err := coll.Insert(second)
	require.NoError(t, err)

	assert.Greater(t, secondID, firstID)
}

func TestDatabase_CloseIsIdempotent(t *testing.T) {
	db, err := Open(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.Collection("widgets")
	assert.Error(t, err)
}

func TestDatabase_Stats(t *testing.T) {
	db := openMem(t)

	coll, err := db.Collection("widgets")
	require.NoError(t, err)
	doc := document.New()
	doc.Set("name", value.String("sprocket"))
	_, err = coll.Insert(doc)
	require.NoError(t, err)

	stats := db.CollectionStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "widgets", stats[0].Name)
	assert.Equal(t, 1, stats[0].DocumentCount)

	assert.Empty(t, db.RTreeStats())
	assert.Equal(t, 0, db.ActiveTransactions())
}

type widget struct {
	ID   document.ID `json:"_id"`
	Name string      `json:"name"`
}

func (w *widget) SetEntityID(id document.ID) { w.ID = id }

func TestDatabase_RepositoryRoundTrip(t *testing.T) {
	db := openMem(t)

	repo, err := db.Repository(repository.Descriptor{Name: "widgets"})
	require.NoError(t, err)

	w := &widget{Name: "sprocket"}
	id, err := repo.Insert(w)
	require.NoError(t, err)
	assert.Equal(t, id, w.ID)

	var out widget
	require.NoError(t, repo.FindByID(id, &out))
	assert.Equal(t, "sprocket", out.Name)
}

func TestDatabase_KeyedRepository(t *testing.T) {
	db := openMem(t)

	repo, err := db.KeyedRepository(repository.Descriptor{Name: "widgets"}, "name")
	require.NoError(t, err)

	w := &widget{Name: "sprocket"}
	_, err = repo.Insert(w)
	require.NoError(t, err)

	var out widget
	require.NoError(t, repo.FindByKey("sprocket", &out))
	assert.Equal(t, "sprocket", out.Name)

	n, err := repo.RemoveByKey("sprocket")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSession_TxCommitPersists(t *testing.T) {
	db := openMem(t)

	sess := db.Session()
	defer sess.Close()

	tx := sess.Begin()
	coll, err := tx.Collection("widgets")
	require.NoError(t, err)

	doc := document.New()
	doc.Set("name", value.String("sprocket"))
	_, err = coll.Insert(doc)
	require.NoError(t, err)

	assert.Equal(t, 1, tx.PendingOperations())
	require.NoError(t, tx.Commit())

	autoColl, err := db.Collection("widgets")
	require.NoError(t, err)
	stats := db.CollectionStats()
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].DocumentCount)
	_ = autoColl
}

func TestSession_TxRollbackDiscardsWrites(t *testing.T) {
	db := openMem(t)

	sess := db.Session()
	defer sess.Close()

	tx := sess.Begin()
	coll, err := tx.Collection("widgets")
	require.NoError(t, err)

	doc := document.New()
	doc.Set("name", value.String("sprocket"))
	_, err = coll.Insert(doc)
	require.NoError(t, err)

	require.NoError(t, tx.Rollback())

	stats := db.CollectionStats()
	require.Len(t, stats, 1)
	assert.Equal(t, 0, stats[0].DocumentCount)
}
