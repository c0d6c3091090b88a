package collection

import (
	"strings"

	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/events"
	"github.com/nitrited/nitrite/pkg/index"
	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/value"
)

// Clear discards every document in the collection directly against the
// primary map and rebuilds every existing index to empty. Like index
// structure changes, clear is auto-committed rather than journaled:
// spec.md treats it as structural, not a reversible document mutation
// (spec.md §4.3).
func (c *Collection) Clear() error {
	primary, err := c.ctx.Primary(c.name)
	if err != nil {
		return err
	}
	unlock := c.ctx.Locks().Lock(c.name)
	primary.Clear()
	unlock()

	if idx := c.ctx.Indexes(c.name); idx != nil {
		for _, d := range idx.List() {
			if err := idx.Rebuild(d.Fields, emptyDocs); err != nil {
				return err
			}
		}
	}
	publishCollectionEvent(c.ctx.Events(), events.EventCollectionCleared, c.name)
	return nil
}

func emptyDocs(func(document.ID, *document.Document) bool) {}

// Attributes returns the collection's map-level attribute document, if
// any was set.
func (c *Collection) Attributes() (*document.Document, bool, error) {
	primary, err := c.ctx.Primary(c.name)
	if err != nil {
		return nil, false, err
	}
	unlock := c.ctx.Locks().RLock(c.name)
	defer unlock()
	d, ok := primary.Attributes()
	return d, ok, nil
}

// SetAttributes replaces the collection's map-level attribute document.
func (c *Collection) SetAttributes(attrs *document.Document) error {
	primary, err := c.ctx.Primary(c.name)
	if err != nil {
		return err
	}
	unlock := c.ctx.Locks().Lock(c.name)
	defer unlock()
	primary.SetAttributes(attrs)
	return nil
}

func (c *Collection) docIterator(view kvstore.Map) index.DocIterator {
	return func(yield func(document.ID, *document.Document) bool) {
		view.Ascend(func(key, val value.Value) bool {
			if key.Kind() != value.KindID {
				return true
			}
			doc, ok := document.FromValue(val)
			if !ok {
				return true
			}
			return yield(document.ID(key.IDValue()), doc)
		})
	}
}

// CreateIndex builds a new index over fields from the collection's current
// contents. Like every structural index operation it is auto-committed,
// applying directly to the index manager rather than through a journal
// (spec.md §4.3).
func (c *Collection) CreateIndex(fields []string, kind index.Kind) error {
	idx := c.ctx.Indexes(c.name)
	if idx == nil {
		return nitriteerr.InvalidOperation("collection has no index manager")
	}
	primary, err := c.ctx.Primary(c.name)
	if err != nil {
		return err
	}
	unlock := c.ctx.Locks().RLock(c.name)
	it := c.docIterator(primary)
	err = idx.Create(fields, kind, it)
	unlock()
	if err != nil {
		return err
	}
	publishCollectionEvent(c.ctx.Events(), events.EventIndexCreated, c.name)
	return nil
}

// DropIndex removes the index over fields.
func (c *Collection) DropIndex(fields []string) error {
	idx := c.ctx.Indexes(c.name)
	if idx == nil {
		return nitriteerr.NotFound("no index on " + strings.Join(fields, ","))
	}
	if err := idx.Drop(fields); err != nil {
		return err
	}
	publishCollectionEvent(c.ctx.Events(), events.EventIndexDropped, c.name)
	return nil
}

// DropAllIndexes removes every index on the collection.
func (c *Collection) DropAllIndexes() error {
	idx := c.ctx.Indexes(c.name)
	if idx == nil {
		return nil
	}
	for _, d := range idx.List() {
		if err := idx.Drop(d.Fields); err != nil {
			return err
		}
	}
	publishCollectionEvent(c.ctx.Events(), events.EventIndexDropped, c.name)
	return nil
}

// ListIndexes returns every index descriptor registered on the collection.
func (c *Collection) ListIndexes() []index.Descriptor {
	idx := c.ctx.Indexes(c.name)
	if idx == nil {
		return nil
	}
	return idx.List()
}

// HasIndex reports whether an index (building or ready) exists on fields.
func (c *Collection) HasIndex(fields []string) bool {
	idx := c.ctx.Indexes(c.name)
	return idx != nil && idx.Has(fields)
}

// IsIndexing reports whether an index on fields is currently building.
func (c *Collection) IsIndexing(fields []string) bool {
	idx := c.ctx.Indexes(c.name)
	return idx != nil && idx.IsIndexing(fields)
}

// RebuildIndex drops and recreates the index over fields from the
// collection's current contents.
func (c *Collection) RebuildIndex(fields []string) error {
	idx := c.ctx.Indexes(c.name)
	if idx == nil {
		return nitriteerr.NotFound("no index on " + strings.Join(fields, ","))
	}
	primary, err := c.ctx.Primary(c.name)
	if err != nil {
		return err
	}
	unlock := c.ctx.Locks().RLock(c.name)
	it := c.docIterator(primary)
	err = idx.Rebuild(fields, it)
	unlock()
	if err != nil {
		return err
	}
	publishCollectionEvent(c.ctx.Events(), events.EventIndexRebuilt, c.name)
	return nil
}
