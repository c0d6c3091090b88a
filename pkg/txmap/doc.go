// Package txmap implements TransactionalMap (spec.md §4.2): a copy-on-write
// view over a read-only primary kvstore.Map, with a local "backing" map of
// writes and a tombstone set of keys hidden from the primary. It is the
// per-collection map a Transaction hands to the operations layer; reads
// never mutate backing (the memory-leak-avoidance invariant of spec.md §4.2).
package txmap
