package collection

import (
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/events"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/txn"
)

// UpdateOptions controls update_by_filter/update_by_id, spec.md §4.4.
type UpdateOptions struct {
	// Upsert inserts update as a new document when nothing matched.
	Upsert bool
	// JustOnce limits UpdateByFilter to at most one matching document.
	JustOnce bool
	// Replace swaps the matched document's fields for update's wholesale,
	// instead of merging update's fields onto the existing document.
	Replace bool
}

// UpdateByID applies update to the document with the given _id, merging
// fields onto the existing document (or replacing them if opts.Replace),
// and bumping its revision. With opts.Upsert and no existing document, it
// inserts update as a new document carrying id instead.
func (c *Collection) UpdateByID(id document.ID, update *document.Document, opts UpdateOptions) (*document.Document, error) {
	tx, owned := c.txOrNew()
	result, err := c.updateOne(tx, id, update, opts)
	if err != nil {
		if owned {
			_ = tx.Rollback()
		}
		return nil, err
	}
	if result == nil && opts.Upsert {
		toInsert := update.Clone()
		toInsert.SetID(id)
		if _, err := c.insertOne(tx, toInsert); err != nil {
			if owned {
				_ = tx.Rollback()
			}
			return nil, err
		}
		result = toInsert
	}
	if owned {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// UpdateByFilter applies update to every document matching f (or just one,
// with opts.JustOnce), returning the number of documents changed. With
// opts.Upsert and no match, update is inserted as a new document.
func (c *Collection) UpdateByFilter(f filter.Filter, update *document.Document, opts UpdateOptions) (int, error) {
	if f == nil {
		f = filter.All()
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
	if opts.JustOnce && len(ids) > 1 {
		ids = ids[:1]
	}

	tx, owned := c.txOrNew()
	updated := 0
	for _, id := range ids {
		res, err := c.updateOne(tx, id, update, opts)
		if err != nil {
			if owned {
				_ = tx.Rollback()
			}
			return updated, err
		}
		if res != nil {
			updated++
		}
	}
	if len(ids) == 0 && opts.Upsert {
		toInsert := update.Clone()
		if _, err := c.insertOne(tx, toInsert); err != nil {
			if owned {
				_ = tx.Rollback()
			}
			return updated, err
		}
		updated++
	}
	if owned {
		if err := tx.Commit(); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// updateOne stages an update to id within tx, returning the new document
// on success or nil (no error) if id doesn't currently exist.
func (c *Collection) updateOne(tx *txn.Transaction, id document.ID, update *document.Document, opts UpdateOptions) (*document.Document, error) {
	primary, err := c.ctx.Primary(c.name)
	if err != nil {
		return nil, err
	}
	key := id.Value()

	unlock := c.ctx.Locks().Lock(c.name)
	tm, err := tx.Collection(c.name)
	if err != nil {
		unlock()
		return nil, err
	}
	existing, exists := tm.Get(key)
	if !exists {
		unlock()
		return nil, nil
	}
	oldDoc, _ := document.FromValue(existing)
	newDoc := applyUpdate(oldDoc, update, opts.Replace)
	newDoc.SetID(id)
	if rev, ok := oldDoc.Revision(); ok {
		newDoc.SetRevision(rev + 1)
	} else {
		newDoc.SetRevision(1)
	}
	tm.Put(key, newDoc.AsValue())
	unlock()

	idx := c.ctx.Indexes(c.name)
	broker := c.ctx.Events()
	commit := func() error {
		unlock := c.ctx.Locks().Lock(c.name)
		defer unlock()
		primary.Put(key, newDoc.AsValue())
		if idx != nil {
			if err := idx.RemoveDoc(id, oldDoc); err != nil {
				return err
			}
			if err := idx.InsertDoc(id, newDoc); err != nil {
				return err
			}
		}
		publishDoc(broker, events.EventDocumentUpdated, c.name, id)
		return nil
	}
	rollback := func() error {
		unlock := c.ctx.Locks().Lock(c.name)
		defer unlock()
		primary.Put(key, oldDoc.AsValue())
		if idx != nil {
			_ = idx.RemoveDoc(id, newDoc)
			_ = idx.InsertDoc(id, oldDoc)
		}
		return nil
	}
	if err := tx.Record(c.name, txn.Entry{Kind: txn.ChangeUpdate, Commit: commit, Rollback: rollback}); err != nil {
		return nil, err
	}
	return newDoc, nil
}

// applyUpdate merges update's fields onto old (or replaces old wholesale),
// leaving old's _id/_revision untouched — the caller stamps both
// afterward.
func applyUpdate(old, update *document.Document, replace bool) *document.Document {
	if replace {
		return update.Clone()
	}
	out := old.Clone()
	for _, f := range update.Fields() {
		if f == document.IDField || f == document.RevisionField {
			continue
		}
		v, _ := update.Get(f)
		out.Set(f, v)
	}
	return out
}
