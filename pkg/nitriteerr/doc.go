// Package nitriteerr defines the error taxonomy surfaced at the database's
// API boundary: a small set of Kinds plus an Error that wraps an underlying
// cause the way the rest of the module wraps errors with fmt.Errorf("%w").
package nitriteerr
