package txn

import "sync"

// Session owns the set of Transactions created from it. Closing a Session
// rolls back any transaction still Active; Sessions are per-caller, there
// is no global session (spec.md §4.3).
type Session struct {
	mu       sync.Mutex
	resolver PrimaryResolver
	locks    *LockRegistry
	txns     []*Transaction
}

// NewSession creates a Session backed by resolver and sharing locks (pass
// the database's single LockRegistry so transactions across sessions still
// serialize on the same collection locks).
func NewSession(resolver PrimaryResolver, locks *LockRegistry) *Session {
	return &Session{resolver: resolver, locks: locks}
}

// Begin starts a new Active transaction owned by this session.
func (s *Session) Begin() *Transaction {
	t := New(s.resolver, s.locks)
	s.mu.Lock()
	s.txns = append(s.txns, t)
	s.mu.Unlock()
	return t
}

// Transactions lists every transaction ever begun on this session.
func (s *Session) Transactions() []*Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Transaction, len(s.txns))
	copy(out, s.txns)
	return out
}

// Close rolls back every transaction still Active.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txns {
		if t.State() == StateActive {
			_ = t.Rollback()
		}
	}
}
