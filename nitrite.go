// Package nitrite is an embedded, document-oriented database: a
// transactional collection store with a disk-resident R-tree spatial
// index, exposed as an in-process API (spec.md §6).
package nitrite

import (
	"sort"
	"strings"
	"sync"

	"github.com/nitrited/nitrite/pkg/collection"
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/events"
	"github.com/nitrited/nitrite/pkg/index"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/metrics"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/repository"
	"github.com/nitrited/nitrite/pkg/txn"
	"github.com/nitrited/nitrite/pkg/value"
)

// StorageKind selects the backing kvstore.Store a Database opens over.
type StorageKind string

const (
	InMemory   StorageKind = "in-memory"
	Persistent StorageKind = "persistent"
)

// Credentials gates Open when a host application requires them
// (spec.md §7's SecurityError).
type Credentials struct {
	Username string
	Password string
}

// Migration runs once against a freshly opened Database to carry it from
// one SchemaVersion to the next. Migrations run in ascending Version
// order; a Database tracks the highest Version it has already applied in
// its reserved metadata map.
type Migration struct {
	Version int
	Up      func(*Database) error
}

// Options configures Open/OpenOrCreate (spec.md §6).
type Options struct {
	StorageKind StorageKind
	// DataDir is required when StorageKind is Persistent.
	DataDir string
	// RTreeDir holds spatial index files; defaults to DataDir, or the
	// current working directory (".") for an in-memory database.
	RTreeDir       string
	SchemaVersion  int
	FieldSeparator string
	Migrations     []Migration
	Credentials    *Credentials
	// RequireCredentials rejects Open unless opts.Credentials matches
	// Database's expected credentials, per spec.md §7's SecurityError.
	RequireCredentials *Credentials
}

func DefaultOptions() Options {
	return Options{StorageKind: InMemory, SchemaVersion: 1, FieldSeparator: "."}
}

const schemaVersionKey = "schema_version"

// Database is the root handle: one backing Store, one LockRegistry and
// event Broker shared by every collection it opens, and the per-collection
// id allocators and index managers created lazily on first touch.
type Database struct {
	mu         sync.RWMutex
	opts       Options
	store      kvstore.Store
	locks      *txn.LockRegistry
	broker     *events.Broker
	allocators map[string]*document.Allocator
	indexes    map[string]*index.Manager
	closed     bool
}

// Open opens (creating if absent) a database under opts. This is also
// OpenOrCreate: every Store backend's Map/file creation is itself lazy, so
// there is no separate "must already exist" mode to distinguish.
func Open(opts Options) (*Database, error) {
	if opts.RequireCredentials != nil {
		if opts.Credentials == nil ||
			opts.Credentials.Username != opts.RequireCredentials.Username ||
			opts.Credentials.Password != opts.RequireCredentials.Password {
			return nil, nitriteerr.Security("invalid or missing credentials")
		}
	}
	if opts.FieldSeparator == "" {
		opts.FieldSeparator = "."
	}
	if opts.SchemaVersion == 0 {
		opts.SchemaVersion = 1
	}

	var store kvstore.Store
	var err error
	switch opts.StorageKind {
	case Persistent:
		if opts.DataDir == "" {
			return nil, nitriteerr.Validation("persistent storage requires DataDir")
		}
		store, err = kvstore.OpenBoltStore(opts.DataDir)
		if opts.RTreeDir == "" {
			opts.RTreeDir = opts.DataDir
		}
	default:
		store = kvstore.NewMemStore()
		if opts.RTreeDir == "" {
			opts.RTreeDir = "."
		}
	}
	if err != nil {
		return nil, err
	}

	broker := events.NewBroker()
	broker.Start()

	db := &Database{
		opts:       opts,
		store:      store,
		locks:      txn.NewLockRegistry(),
		broker:     broker,
		allocators: make(map[string]*document.Allocator),
		indexes:    make(map[string]*index.Manager),
	}
	if err := db.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenOrCreate is an alias for Open kept for API parity with spec.md §6's
// "open-or-create returns a database handle" wording.
func OpenOrCreate(opts Options) (*Database, error) { return Open(opts) }

func (db *Database) runMigrations() error {
	if len(db.opts.Migrations) == 0 {
		return nil
	}
	meta, err := db.store.Map(kvstore.MetadataMapName)
	if err != nil {
		return err
	}
	applied := int64(0)
	if v, ok := meta.Get(value.String(schemaVersionKey)); ok {
		applied = v.Int()
	}
	migrations := append([]Migration(nil), db.opts.Migrations...)
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	for _, m := range migrations {
		if int64(m.Version) <= applied {
			continue
		}
		if err := m.Up(db); err != nil {
			return nitriteerr.Wrap(nitriteerr.KindValidation, "migration to schema version", err)
		}
		meta.Put(value.String(schemaVersionKey), value.Int64(int64(m.Version)))
		applied = int64(m.Version)
	}
	return nil
}

func (db *Database) checkOpen() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nitriteerr.Closed("database is closed")
	}
	return nil
}

// --- collection.Context / txn.PrimaryResolver ---

// Primary implements txn.PrimaryResolver and collection.Context: it
// returns (creating lazily) the committed primary map for a collection.
func (db *Database) Primary(name string) (kvstore.Map, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.store.Map(name)
}

// Allocator returns (creating lazily) the monotone _id allocator for a
// collection, restoring it above the highest id already persisted so a
// reopened database never reissues an id.
func (db *Database) Allocator(name string) *document.Allocator {
	db.mu.Lock()
	defer db.mu.Unlock()
	a, ok := db.allocators[name]
	if ok {
		return a
	}
	a = document.NewAllocator()
	if m, err := db.store.Map(name); err == nil {
		if k, ok := m.LastKey(); ok && k.Kind() == value.KindID {
			a.Restore(document.ID(k.IDValue()))
		}
	}
	db.allocators[name] = a
	return a
}

// Indexes returns (creating lazily) the index manager for a collection.
func (db *Database) Indexes(name string) *index.Manager {
	db.mu.Lock()
	defer db.mu.Unlock()
	m, ok := db.indexes[name]
	if ok {
		return m
	}
	m = index.NewManager(name, db.store, db.opts.RTreeDir)
	db.indexes[name] = m
	return m
}

// Events returns the database's shared event broker.
func (db *Database) Events() *events.Broker { return db.broker }

// Locks returns the database's shared collection lock registry.
func (db *Database) Locks() *txn.LockRegistry { return db.locks }

// Session starts a new Session bound to this database (spec.md §6:
// "session owns transactions").
func (db *Database) Session() *Session {
	return &Session{db: db, inner: txn.NewSession(db, db.locks)}
}

// Session owns the Tx handles begun from it, per spec.md §6.
type Session struct {
	db    *Database
	inner *txn.Session
}

// Begin starts a new transaction owned by this session.
func (s *Session) Begin() *Tx { return &Tx{db: s.db, inner: s.inner.Begin()} }

// Transactions lists every transaction ever begun on this session.
func (s *Session) Transactions() []*Tx {
	inner := s.inner.Transactions()
	out := make([]*Tx, len(inner))
	for i, t := range inner {
		out[i] = &Tx{db: s.db, inner: t}
	}
	return out
}

// Close rolls back every transaction on this session still active.
func (s *Session) Close() { s.inner.Close() }

// Tx is one transaction's view of the database: collection/repository
// handles opened through it journal their writes into it instead of
// auto-committing, per spec.md §6's "transaction exposes collection,
// repository, keyed_repository, commit, rollback, state, id,
// pending_operations, collection_names".
type Tx struct {
	db    *Database
	inner *txn.Transaction
}

func (tx *Tx) Collection(name string) (*collection.Collection, error) {
	return collection.Open(tx.db, name, tx.inner)
}

func (tx *Tx) Repository(desc repository.Descriptor) (*repository.Repository, error) {
	return repository.Open(tx.db, tx.inner, desc)
}

func (tx *Tx) KeyedRepository(desc repository.Descriptor, keyField string) (*repository.KeyedRepository, error) {
	return repository.OpenKeyed(tx.db, tx.inner, desc, keyField)
}

func (tx *Tx) Commit() error             { return tx.inner.Commit() }
func (tx *Tx) Rollback() error           { return tx.inner.Rollback() }
func (tx *Tx) State() txn.State          { return tx.inner.State() }
func (tx *Tx) ID() string                { return tx.inner.ID() }
func (tx *Tx) PendingOperations() int    { return tx.inner.PendingOperations() }
func (tx *Tx) CollectionNames() []string { return tx.inner.CollectionNames() }

// --- collection / repository access ---

// Collection opens an auto-commit handle on the named collection: every
// write commits immediately, with no caller-visible transaction.
func (db *Database) Collection(name string) (*collection.Collection, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return collection.Open(db, name, nil)
}

// Repository opens a typed view over the collection named by desc, per
// spec.md §6.
func (db *Database) Repository(desc repository.Descriptor) (*repository.Repository, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return repository.Open(db, nil, desc)
}

// KeyedRepository opens a typed view like Repository, additionally
// supporting lookup by keyField instead of the synthetic _id.
func (db *Database) KeyedRepository(desc repository.Descriptor, keyField string) (*repository.KeyedRepository, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return repository.OpenKeyed(db, nil, desc, keyField)
}

// Close stops the event broker, closes every spatial index, and closes
// the backing store. A second Close is a no-op.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.broker.Stop()
	for _, idx := range db.indexes {
		_ = idx.Close()
	}
	return db.store.Close()
}

// --- metrics.StatsSource ---

func (db *Database) CollectionStats() []metrics.CollectionStats {
	db.mu.RLock()
	names := db.store.MapNames()
	indexes := make(map[string]*index.Manager, len(db.indexes))
	for k, v := range db.indexes {
		indexes[k] = v
	}
	db.mu.RUnlock()

	out := make([]metrics.CollectionStats, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, "$nitrite_") {
			continue
		}
		m, err := db.store.Map(name)
		if err != nil {
			continue
		}
		states := map[string]string{}
		if idx, ok := indexes[name]; ok {
			for _, d := range idx.List() {
				states[strings.Join(d.Fields, ",")] = string(d.State)
			}
		}
		out = append(out, metrics.CollectionStats{
			Name:          name,
			DocumentCount: m.Size(),
			IndexStates:   states,
		})
	}
	return out
}

func (db *Database) RTreeStats() []metrics.RTreeStats {
	db.mu.RLock()
	indexes := make(map[string]*index.Manager, len(db.indexes))
	for k, v := range db.indexes {
		indexes[k] = v
	}
	db.mu.RUnlock()

	var out []metrics.RTreeStats
	for collName, idx := range indexes {
		for _, d := range idx.List() {
			if d.Kind != index.KindSpatial {
				continue
			}
			si, ok := idx.Spatial(d.Fields)
			if !ok {
				continue
			}
			st := si.Stats()
			out = append(out, metrics.RTreeStats{
				IndexName:    collName + ":" + strings.Join(d.Fields, ","),
				Height:       st.Height,
				TotalEntries: int(st.TotalEntries),
				CachedPages:  st.CachedPages,
				CacheHits:    st.CacheHits,
				CacheMisses:  st.CacheMisses,
				DiskReads:    st.DiskReads,
				DiskWrites:   st.DiskWrites,
			})
		}
	}
	return out
}

func (db *Database) ActiveTransactions() int {
	// Sessions are created per-caller and not tracked by the database
	// itself (spec.md §4.3: "there is no global session"); a host
	// application that wants this metric populated should track its own
	// Session/Transaction handles and report them through its own
	// StatsSource, or wrap Database accordingly.
	return 0
}
