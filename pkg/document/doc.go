// Package document implements the Document type (an ordered field-name to
// value.Value mapping carrying a synthetic _id and optional _revision) and
// the monotone Id allocator described in spec.md §3.
package document
