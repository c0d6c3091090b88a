// Package repository implements spec.md §6's typed repository view: a
// Repository is a Collection driven by an entity descriptor, marshaling
// Go structs to and from the document model through their json tags.
package repository

import (
	"encoding/json"

	"github.com/mitchellh/mapstructure"

	"github.com/nitrited/nitrite/pkg/collection"
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/filter"
	"github.com/nitrited/nitrite/pkg/index"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/txn"
	"github.com/nitrited/nitrite/pkg/value"
)

// IndexRequest names one index a Repository ensures exists on open,
// spec.md §6.
type IndexRequest struct {
	Fields []string
	Kind   index.Kind
}

// Descriptor drives Repository/KeyedRepository: the entity's backing
// collection name and the indexes it maintains. A KeyedRepository's key
// field is not part of the Descriptor; it is passed to OpenKeyed.
type Descriptor struct {
	Name    string
	Indexes []IndexRequest
}

// IdentifiableEntity lets a struct receive the document.ID a Repository
// assigns on Insert. Entities that don't implement it can still be
// inserted; the caller just has no way to learn the assigned id back.
type IdentifiableEntity interface {
	SetEntityID(document.ID)
}

// Repository is a typed view over one collection: every entity moves
// through document.Document via JSON, the same field-naming convention
// encoding/json and mapstructure both use, so one struct tag serves both
// directions.
type Repository struct {
	coll *collection.Collection
}

// Open binds a Repository to desc's collection, creating any index from
// desc.Indexes that doesn't already exist. A nil tx auto-commits every
// write, as with collection.Open; a non-nil tx ties every write to that
// transaction (spec.md §6's "transaction exposes ... repository").
func Open(ctx collection.Context, tx *txn.Transaction, desc Descriptor) (*Repository, error) {
	coll, err := collection.Open(ctx, desc.Name, tx)
	if err != nil {
		return nil, err
	}
	r := &Repository{coll: coll}
	if err := r.ensureIndexes(desc.Indexes); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureIndexes(requests []IndexRequest) error {
	for _, ix := range requests {
		if r.coll.HasIndex(ix.Fields) {
			continue
		}
		if err := r.coll.CreateIndex(ix.Fields, ix.Kind); err != nil {
			return err
		}
	}
	return nil
}

// Collection returns the untyped Collection backing this Repository, for
// callers that need filter/index operations Repository doesn't expose.
func (r *Repository) Collection() *collection.Collection { return r.coll }

// Insert marshals entity into a document and inserts it, writing the
// assigned id back into entity if it implements IdentifiableEntity.
func (r *Repository) Insert(entity any) (document.ID, error) {
	doc, err := toDocument(entity)
	if err != nil {
		return 0, err
	}
	id, err := r.coll.Insert(doc)
	if err != nil {
		return 0, err
	}
	if settable, ok := entity.(IdentifiableEntity); ok {
		settable.SetEntityID(id)
	}
	return id, nil
}

// InsertMany inserts every entity in entities within one transaction.
func (r *Repository) InsertMany(entities []any) ([]document.ID, error) {
	docs := make([]*document.Document, len(entities))
	for i, e := range entities {
		doc, err := toDocument(e)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}
	ids, err := r.coll.InsertMany(docs)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if settable, ok := entities[i].(IdentifiableEntity); ok {
			settable.SetEntityID(id)
		}
	}
	return ids, nil
}

// FindByID loads the document with the given id into out, a pointer to a
// struct.
func (r *Repository) FindByID(id document.ID, out any) error {
	doc, err := r.coll.GetByID(id)
	if err != nil {
		return err
	}
	return fromDocument(doc, out)
}

// Update re-marshals entity (which must carry a valid _id, as set by a
// prior Insert) and replaces the stored document's fields with it.
func (r *Repository) Update(entity any) (*document.Document, error) {
	doc, err := toDocument(entity)
	if err != nil {
		return nil, err
	}
	id, ok := doc.ID()
	if !ok {
		return nil, nitriteerr.NotIdentifiable("entity has no _id to update")
	}
	return r.coll.UpdateByID(id, doc, collection.UpdateOptions{Replace: true})
}

// RemoveByID removes the document with the given id.
func (r *Repository) RemoveByID(id document.ID) (bool, error) {
	return r.coll.RemoveOne(document.FromMap([]string{document.IDField}, map[string]value.Value{document.IDField: id.Value()}))
}

// Find resolves f against the repository's collection and returns a
// TypedCursor over the matches.
func (r *Repository) Find(f filter.Filter, opts collection.FindOptions) (*TypedCursor, error) {
	cur, err := r.coll.Find(f, opts)
	if err != nil {
		return nil, err
	}
	return &TypedCursor{cursor: cur}, nil
}

// TypedCursor decodes each document in a Repository.Find result into a
// caller-supplied struct, mirroring collection.Cursor's iteration shape.
type TypedCursor struct {
	cursor *collection.Cursor
}

func (tc *TypedCursor) Next() bool         { return tc.cursor.Next() }
func (tc *TypedCursor) Len() int           { return tc.cursor.Len() }
func (tc *TypedCursor) Decode(out any) error { return fromDocument(tc.cursor.Document(), out) }

// KeyedRepository is a Repository that additionally supports lookup by a
// named field instead of the synthetic _id (spec.md §6's "optional key").
// The key field should carry a unique index for FindByKey to be efficient,
// but KeyedRepository works (via a collection scan) without one.
type KeyedRepository struct {
	*Repository
	keyField string
}

// OpenKeyed binds a KeyedRepository to desc's collection, additionally
// remembering keyField for the By* methods.
func OpenKeyed(ctx collection.Context, tx *txn.Transaction, desc Descriptor, keyField string) (*KeyedRepository, error) {
	r, err := Open(ctx, tx, desc)
	if err != nil {
		return nil, err
	}
	return &KeyedRepository{Repository: r, keyField: keyField}, nil
}

func (kr *KeyedRepository) keyFilter(key any) (filter.Filter, error) {
	v, err := rawToValue(key)
	if err != nil {
		return nil, err
	}
	return filter.Eq(kr.keyField, v), nil
}

// FindByKey loads the one document whose keyField equals key into out.
func (kr *KeyedRepository) FindByKey(key any, out any) error {
	f, err := kr.keyFilter(key)
	if err != nil {
		return err
	}
	cur, err := kr.Repository.coll.Find(f, collection.FindOptions{Limit: 1})
	if err != nil {
		return err
	}
	if !cur.Next() {
		return nitriteerr.NotFound("no entity with " + kr.keyField + " matching key")
	}
	return fromDocument(cur.Document(), out)
}

// RemoveByKey removes every document whose keyField equals key.
func (kr *KeyedRepository) RemoveByKey(key any) (int, error) {
	f, err := kr.keyFilter(key)
	if err != nil {
		return 0, err
	}
	return kr.Repository.coll.RemoveByFilter(f, false)
}

// UpsertByKey updates the document whose keyField equals key, or inserts
// entity as a new document if none matched.
func (kr *KeyedRepository) UpsertByKey(key any, entity any) (int, error) {
	f, err := kr.keyFilter(key)
	if err != nil {
		return 0, err
	}
	doc, err := toDocument(entity)
	if err != nil {
		return 0, err
	}
	return kr.Repository.coll.UpdateByFilter(f, doc, collection.UpdateOptions{Upsert: true, JustOnce: true, Replace: true})
}

// --- struct <-> document.Document marshaling ---

// toDocument marshals entity through JSON, so its _id field (if any) comes
// back as a float64 like every other JSON number, not the document.ID
// carrying value.KindID that Document.ID()/UpdateByID expect. A zero _id
// means "not yet inserted": drop it so insertOne allocates a fresh id. A
// nonzero _id is restored to a proper value.ID so Update can find it.
func toDocument(entity any) (*document.Document, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, nitriteerr.ObjectMapping("marshal entity to document", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nitriteerr.ObjectMapping("decode entity fields", err)
	}
	doc := document.New()
	for k, v := range m {
		if k == document.IDField {
			continue
		}
		val, err := rawToValue(v)
		if err != nil {
			return nil, err
		}
		doc.Set(k, val)
	}
	if rawID, ok := m[document.IDField]; ok {
		if f, ok := rawID.(float64); ok && f != 0 {
			doc.SetID(document.ID(uint64(f)))
		}
	}
	return doc, nil
}

func fromDocument(doc *document.Document, out any) error {
	m := make(map[string]any, len(doc.Fields()))
	for _, f := range doc.Fields() {
		v, _ := doc.Get(f)
		m[f] = valueToRaw(v)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return nitriteerr.ObjectMapping("build entity decoder", err)
	}
	if err := dec.Decode(m); err != nil {
		return nitriteerr.ObjectMapping("decode document into entity", err)
	}
	return nil
}

// rawToValue converts a value produced by json.Unmarshal (nil, bool,
// float64, string, []any, map[string]any) into a value.Value.
func rawToValue(v any) (value.Value, error) {
	switch t := v.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(t), nil
	case float64:
		return value.Float64(t), nil
	case string:
		return value.String(t), nil
	case []byte:
		return value.Bytes(t), nil
	case []any:
		arr := make([]value.Value, len(t))
		for i, e := range t {
			ev, err := rawToValue(e)
			if err != nil {
				return value.Null(), err
			}
			arr[i] = ev
		}
		return value.Array(arr), nil
	case map[string]any:
		d := value.NewDoc()
		for k, e := range t {
			ev, err := rawToValue(e)
			if err != nil {
				return value.Null(), err
			}
			d.Set(k, ev)
		}
		return value.DocumentValue(d), nil
	default:
		return value.Null(), nitriteerr.ObjectMapping("unsupported field type", nil)
	}
}

// valueToRaw converts a value.Value back into the json.Unmarshal-shaped
// Go value mapstructure.Decode expects.
func valueToRaw(v value.Value) any {
	switch v.Kind() {
	case value.KindArray:
		arr := v.Array()
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = valueToRaw(e)
		}
		return out
	case value.KindDocument:
		d := v.Doc()
		out := map[string]any{}
		if d != nil {
			for el := d.Front(); el != nil; el = el.Next() {
				out[el.Key] = valueToRaw(el.Value)
			}
		}
		return out
	default:
		return v.Raw()
	}
}
