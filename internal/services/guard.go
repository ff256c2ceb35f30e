// In-process dispatch guard.
//
// The data store offers no cross-row transactions, so two concurrent reminder
// runs (timer tick plus manual trigger) could both pick up the same due event.
// The guard closes that window inside one process: an event id may be held by
// at most one dispatch attempt at a time. It is not a distributed lock; the
// read-after-acquire double-check in the reminder scheduler covers the rest.
package services

import "sync"

// Guard is a mutex-protected set of in-flight identifiers.
//
// TryAcquire must be paired with Release on every exit path of the critical
// section, including failures, or the id starves permanently.
// The zero value is not usable; construct with NewGuard.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// TryAcquire inserts id and returns true only if it was absent. When another
// holder is active it returns false without mutating the set.
func (g *Guard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inFlight[id]; held {
		return false
	}
	g.inFlight[id] = struct{}{}
	return true
}

// Release removes id unconditionally. Releasing an id that is not held is a
// no-op.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, id)
}

// Held reports whether id is currently in flight. Intended for tests and
// introspection only; production code must rely on TryAcquire's return value.
func (g *Guard) Held(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.inFlight[id]
	return held
}
