package txn

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nitrited/nitrite/pkg/kvstore"
	"github.com/nitrited/nitrite/pkg/log"
	"github.com/nitrited/nitrite/pkg/nitriteerr"
	"github.com/nitrited/nitrite/pkg/txmap"
)

// PrimaryResolver looks up the committed primary map for a collection name,
// creating it lazily if this is the first time any transaction has touched
// it. Database implements this; txn depends only on the interface to avoid
// an import cycle with pkg/collection.
type PrimaryResolver interface {
	Primary(name string) (kvstore.Map, error)
}

// Transaction is one unit of isolation: a set of per-collection
// TransactionalMaps plus their journals, committed or rolled back as a
// whole (spec.md §4.3).
type Transaction struct {
	mu          sync.Mutex
	id          string
	state       State
	resolver    PrimaryResolver
	locks       *LockRegistry
	collections map[string]*txmap.TransactionalMap
	journals    map[string]*Journal
}

// New creates an Active transaction. resolver supplies primaries on demand;
// locks is shared across all transactions in a session (and usually the
// whole database) so that lock acquisition serializes across transactions.
func New(resolver PrimaryResolver, locks *LockRegistry) *Transaction {
	return &Transaction{
		id:          uuid.NewString(),
		state:       StateActive,
		resolver:    resolver,
		locks:       locks,
		collections: make(map[string]*txmap.TransactionalMap),
		journals:    make(map[string]*Journal),
	}
}

func (t *Transaction) ID() string { return t.id }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CollectionNames lists collections touched by this transaction so far.
func (t *Transaction) CollectionNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.collections))
	for name := range t.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PendingOperations counts journaled (not yet committed) entries across all
// collections touched by this transaction.
func (t *Transaction) PendingOperations() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, j := range t.journals {
		n += j.Len()
	}
	return n
}

// Collection returns the TransactionalMap view of a collection's primary
// map, creating it on first access within this transaction.
func (t *Transaction) Collection(name string) (*txmap.TransactionalMap, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return nil, nitriteerr.InvalidOperation("transaction is not active: " + string(t.state))
	}
	if m, ok := t.collections[name]; ok {
		return m, nil
	}
	primary, err := t.resolver.Primary(name)
	if err != nil {
		return nil, err
	}
	tm := txmap.New(name, primary)
	t.collections[name] = tm
	t.journals[name] = &Journal{}
	return tm, nil
}

// Record appends a journal entry for a collection already touched via
// Collection. It fails if the transaction is no longer active, in which
// case no entry is appended (spec.md §7's "writes in a transaction fail
// locally and append no journal entry on failure" propagation policy).
func (t *Transaction) Record(collection string, e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return nitriteerr.InvalidOperation("transaction is not active: " + string(t.state))
	}
	j, ok := t.journals[collection]
	if !ok {
		j = &Journal{}
		t.journals[collection] = j
	}
	j.Append(e)
	return nil
}

// Commit executes the two-phase commit algorithm of spec.md §4.3: each
// collection's journal drains into commit commands first, recording their
// rollbacks; any command failure triggers automatic rollback of everything
// already committed and the transaction closes in the Failed path.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	if t.state != StateActive {
		err := nitriteerr.InvalidOperation("cannot commit from state " + string(t.state))
		t.mu.Unlock()
		return err
	}
	t.state = StatePartiallyCommitted
	names := make([]string, 0, len(t.journals))
	for name := range t.journals {
		names = append(names, name)
	}
	sort.Strings(names)
	journals := t.journals
	t.mu.Unlock()

	undoRegistry := make(map[string][]func() error, len(names))
	var commitErr error

	for _, name := range names {
		j := journals[name]
		var undo []func() error
		for {
			entry, ok := j.popFront()
			if !ok {
				break
			}
			if err := entry.Commit(); err != nil {
				commitErr = fmt.Errorf("commit failed for collection %q: %w", name, err)
				break
			}
			if entry.Rollback != nil {
				undo = append(undo, entry.Rollback)
			}
		}
		undoRegistry[name] = undo
		if commitErr != nil {
			break
		}
	}

	if commitErr != nil {
		t.mu.Lock()
		t.state = StateFailed
		t.mu.Unlock()
		t.rollbackWith(undoRegistry)
		t.mu.Lock()
		t.state = StateClosed
		t.mu.Unlock()
		return commitErr
	}

	t.mu.Lock()
	t.state = StateCommitted
	t.state = StateClosed
	t.mu.Unlock()
	return nil
}

// rollbackWith executes recorded rollback commands in LIFO order per
// collection, in sorted collection-name order across collections.
// Failures are logged and swallowed: rollback is best-effort.
func (t *Transaction) rollbackWith(registry map[string][]func() error) {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stack := registry[name]
		for i := len(stack) - 1; i >= 0; i-- {
			if err := stack[i](); err != nil {
				log.Errorf(fmt.Sprintf("rollback command failed for collection %s", name), err)
			}
		}
	}
}

// Rollback aborts an Active transaction, discarding its journals without
// replaying anything onto the primary (nothing was committed yet). From
// Closed it is a no-op returning nil.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	switch t.state {
	case StateClosed:
		t.mu.Unlock()
		return nil
	case StateActive:
		t.state = StateAborted
	}
	t.mu.Unlock()

	t.mu.Lock()
	t.state = StateClosed
	t.mu.Unlock()
	return nil
}
