// Package filter implements the filter evaluation contract of spec.md §4.5:
// the capability set {apply-on-document, apply-on-index, has-field,
// reverse-scan-supported, logical-children} and the concrete variants
// (all, equality, comparison, between, in, not-in, regex, text,
// element-match, logical and/or/not, id-equality). Per spec.md §1 the
// filter DSL *surface* — a parser or builder language a user types queries
// into — is out of scope; filters here are constructed with plain Go
// functions (Eq, Gt, And, ...) that produce immutable Filter values.
package filter
