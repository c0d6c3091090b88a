// Package value implements the tagged-sum Value type that underlies every
// Document field and every index key: null, bool, int32/int64, float32/
// float64, string, bytes, an array of Value, a nested Document-shaped map,
// and a system-assigned Id. Values have a total order used by both
// navigational map lookups and index range scans.
package value
