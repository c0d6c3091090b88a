// Package index implements the secondary index subsystem of spec.md §4.4 F:
// index descriptors, unique/non-unique/full-text index stores backed by
// the same ordered kvstore.Map contract the collections themselves use,
// and resolution of filter.Filter leaves to id sets via filter.IndexReader.
package index
