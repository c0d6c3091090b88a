// Package txn implements the transaction coordinator of spec.md §4.3: per
// collection journals of reversible commands, two-phase commit replayed
// onto the primary, LIFO rollback, and a lock registry that acquires
// per-collection locks on demand to avoid deadlock. Session owns the set of
// transactions created from it and aborts any still-active ones on Close.
package txn
