// Package events provides an in-memory event broker for collection-level
// change notifications (spec.md §9): document inserted/updated/removed,
// collection dropped/cleared, index created/dropped/rebuilt.
//
// Publish enqueues on a buffered channel of 100 events and a single
// broadcast loop fans them out to each subscriber's own buffered channel.
// Publish blocks only while that queue is full (and returns at once after
// Stop). A subscriber whose buffer is full skips the event rather than
// stalling the broker; delivery is best-effort, not guaranteed.
//
// pkg/collection publishes a document event from the write's commit step,
// right after the primary map is updated and while the collection lock is
// still held. Index and clear events are published after the operation has
// released the lock.
package events
