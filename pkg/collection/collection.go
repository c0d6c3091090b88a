package collection

import (
	"github.com/google/uuid"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/events"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/txn"
)

// Collection is the document operations layer bound to one collection name
// (spec.md §4.4). A nil tx means every write is wrapped in an internal,
// immediately-committed one-shot transaction ("auto-commit"); a non-nil tx
// journals writes into the caller's transaction, left pending until the
// caller commits or rolls back.
type Collection struct {
	name string
	ctx  Context
	tx   *txn.Transaction
}

// Open binds a Collection to name. Passing a non-nil tx ties every write to
// that transaction instead of auto-committing.
func Open(ctx Context, name string, tx *txn.Transaction) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &Collection{name: name, ctx: ctx, tx: tx}, nil
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) txOrNew() (t *txn.Transaction, owned bool) {
	if c.tx != nil {
		return c.tx, false
	}
	return txn.New(c.ctx, c.ctx.Locks()), true
}

func (c *Collection) readView() (kvstore.Map, error) {
	if c.tx != nil {
		tm, err := c.tx.Collection(c.name)
		if err != nil {
			return nil, err
		}
		return tm, nil
	}
	return c.ctx.Primary(c.name)
}

func publishDoc(broker *events.Broker, typ events.EventType, collection string, id document.ID) {
	if broker == nil {
		return
	}
	broker.Publish(&events.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Collection: collection,
		DocumentID: id.String(),
	})
}

func publishCollectionEvent(broker *events.Broker, typ events.EventType, collection string) {
	if broker == nil {
		return
	}
	broker.Publish(&events.Event{ID: uuid.NewString(), Type: typ, Collection: collection})
}

// Insert assigns a synthetic _id when doc does not already carry one,
// stamps revision 1, and journals the write (spec.md §4.4 property:
// "_id assigned before insert and immutable").
func (c *Collection) Insert(doc *document.Document) (document.ID, error) {
	tx, owned := c.txOrNew()
	id, err := c.insertOne(tx, doc)
	if err != nil {
		if owned {
			_ = tx.Rollback()
		}
		return 0, err
	}
	if owned {
		if err := tx.Commit(); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// InsertMany inserts every document within a single transaction: an owned
// (auto-commit) call rolls back every prior insert in the batch if any one
// of them fails.
func (c *Collection) InsertMany(docs []*document.Document) ([]document.ID, error) {
	tx, owned := c.txOrNew()
	ids := make([]document.ID, 0, len(docs))
	for _, doc := range docs {
		id, err := c.insertOne(tx, doc)
		if err != nil {
			if owned {
				_ = tx.Rollback()
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	if owned {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (c *Collection) insertOne(tx *txn.Transaction, doc *document.Document) (document.ID, error) {
	primary, err := c.ctx.Primary(c.name)
	if err != nil {
		return 0, err
	}
	id, hasID := doc.ID()
	if !hasID {
		id = c.ctx.Allocator(c.name).Next()
		doc.SetID(id)
	}
	doc.SetRevision(1)
	key := id.Value()

	unlock := c.ctx.Locks().Lock(c.name)
	tm, err := tx.Collection(c.name)
	if err != nil {
		unlock()
		return 0, err
	}
	if _, exists := tm.Get(key); exists {
		unlock()
		return 0, nitriteerr.InvalidOperation("document with id " + id.String() + " already exists")
	}
	frozen := doc.Clone()
	tm.Put(key, frozen.AsValue())
	unlock()

	idx := c.ctx.Indexes(c.name)
	broker := c.ctx.Events()
	commit := func() error {
		unlock := c.ctx.Locks().Lock(c.name)
		defer unlock()
		primary.Put(key, frozen.AsValue())
		if idx != nil {
			if err := idx.InsertDoc(id, frozen); err != nil {
				return err
			}
		}
		publishDoc(broker, events.EventDocumentInserted, c.name, id)
		return nil
	}
	rollback := func() error {
		unlock := c.ctx.Locks().Lock(c.name)
		defer unlock()
		primary.Remove(key)
		if idx != nil {
			_ = idx.RemoveDoc(id, frozen)
		}
		return nil
	}
	if err := tx.Record(c.name, txn.Entry{Kind: txn.ChangeInsert, Commit: commit, Rollback: rollback}); err != nil {
		return 0, err
	}
	return id, nil
}

// GetByID reads one document by its synthetic id through this Collection's
// view: the merged transactional view if bound to a transaction, or the
// committed primary otherwise.
func (c *Collection) GetByID(id document.ID) (*document.Document, error) {
	view, err := c.readView()
	if err != nil {
		return nil, err
	}
	unlock := c.ctx.Locks().RLock(c.name)
	defer unlock()
	doc, ok := getDoc(view, id)
	if !ok {
		return nil, nitriteerr.NotFound("no document with id " + id.String())
	}
	return doc, nil
}

// Size reports the number of live documents visible through this
// Collection's view.
func (c *Collection) Size() (int, error) {
	view, err := c.readView()
	if err != nil {
		return 0, err
	}
	unlock := c.ctx.Locks().RLock(c.name)
	defer unlock()
	return view.Size(), nil
}

// RemoveOne removes doc by its _id. It requires doc to carry an _id;
// spec.md §4.4 classifies a document with no _id here as NotIdentifiable.
func (c *Collection) RemoveOne(doc *document.Document) (bool, error) {
	id, ok := doc.ID()
	if !ok {
		return false, nitriteerr.NotIdentifiable("document has no _id to remove")
	}
	tx, owned := c.txOrNew()
	removed, err := c.removeByID(tx, id)
	if err != nil {
		if owned {
			_ = tx.Rollback()
		}
		return false, err
	}
	if owned {
		if err := tx.Commit(); err != nil {
			return false, err
		}
	}
	return removed, nil
}

func (c *Collection) removeByID(tx *txn.Transaction, id document.ID) (bool, error) {
	primary, err := c.ctx.Primary(c.name)
	if err != nil {
		return false, err
	}
	key := id.Value()

	unlock := c.ctx.Locks().Lock(c.name)
	tm, err := tx.Collection(c.name)
	if err != nil {
		unlock()
		return false, err
	}
	existing, exists := tm.Get(key)
	if !exists {
		unlock()
		return false, nil
	}
	doc, _ := document.FromValue(existing)
	tm.Remove(key)
	unlock()

	idx := c.ctx.Indexes(c.name)
	broker := c.ctx.Events()
	commit := func() error {
		unlock := c.ctx.Locks().Lock(c.name)
		defer unlock()
		primary.Remove(key)
		if idx != nil {
			if err := idx.RemoveDoc(id, doc); err != nil {
				return err
			}
		}
		publishDoc(broker, events.EventDocumentRemoved, c.name, id)
		return nil
	}
	rollback := func() error {
		unlock := c.ctx.Locks().Lock(c.name)
		defer unlock()
		primary.Put(key, doc.AsValue())
		if idx != nil {
			_ = idx.InsertDoc(id, doc)
		}
		return nil
	}
	if err := tx.Record(c.name, txn.Entry{Kind: txn.ChangeRemove, Commit: commit, Rollback: rollback}); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveByFilter removes every document matching f. justOnce=true with f
// being the literal All() filter is rejected as ambiguous, per spec.md
// §4.4; justOnce=true otherwise removes at most one of the matches.
func (c *Collection) RemoveByFilter(f filter.Filter, justOnce bool) (int, error) {
	if f == filter.All() && justOnce {
		return 0, nitriteerr.InvalidOperation("remove(all, just_once=true) is ambiguous")
	}
	view, err := c.readView()
	if err != nil {
		return 0, err
	}
	idx := c.ctx.Indexes(c.name)

	unlockR := c.ctx.Locks().RLock(c.name)
	ids, err := c.matchingIDs(view, idx, f)
	unlockR()
	if err != nil {
		return 0, err
	}
	if justOnce && len(ids) > 1 {
		ids = ids[:1]
	}

	tx, owned := c.txOrNew()
	removed := 0
	for _, id := range ids {
		ok, err := c.removeByID(tx, id)
		if err != nil {
			if owned {
				_ = tx.Rollback()
			}
			return removed, err
		}
		if ok {
			removed++
		}
	}
	if owned {
		if err := tx.Commit(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Clear, index management, UpdateByID/UpdateByFilter and Find live in
// admin.go and query.go to keep this file to the core CRUD path.
