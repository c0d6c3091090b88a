// Package kvstore implements the ordered Map contract of spec.md §4.1: point
// operations plus navigational lookups (first/last/higher/lower/ceiling/
// floor), ascending/descending iteration, lifecycle (close/dispose), and a
// per-map Document-valued attribute blob that each backend keeps with the
// map itself (BoltMap stores it under a reserved key in the map's bucket).
//
// Two backends satisfy Map: MemMap, an in-memory B-tree
// (github.com/google/btree), and BoltMap, a persistent backend over
// go.etcd.io/bbolt whose own cursor (First/Last/Seek/Next/Prev) maps
// directly onto the navigational contract.
package kvstore
