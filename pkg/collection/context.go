// Package collection implements the document operations layer of spec.md
// §4.4: insert, update, remove, find, and index management against a
// transactional collection.
package collection

import (
	"github.com/nitrited/nitrite/pkg/document"
	"github.com/nitrited/nitrite/pkg/events"
	"github.com/nitrited/nitrite/pkg/index"
	"github.com/nitrited/nitrite/pkg/txn"
)

// Context is everything a Collection needs from its owning database, kept
// as a narrow interface so pkg/collection never imports the root package
// (which must import pkg/collection to expose it) — the same import-cycle
// avoidance txn.PrimaryResolver uses one layer down.
type Context interface {
	txn.PrimaryResolver
	Allocator(name string) *document.Allocator
	Indexes(name string) *index.Manager
	Events() *events.Broker
	Locks() *txn.LockRegistry
}

// reservedPrefix names collections spec.md §6 forbids user code from
// opening directly, since they back internal bookkeeping.
const reservedPrefix = "$nitrite_"

func validateName(name string) error {
	if name == "" {
		return errInvalidName("collection name must not be empty")
	}
	if len(name) >= len(reservedPrefix) && name[:len(reservedPrefix)] == reservedPrefix {
		return errInvalidName("collection name " + name + " uses the reserved prefix " + reservedPrefix)
	}
	return nil
}
