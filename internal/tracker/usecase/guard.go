package usecase

import "sync"

// RunGuard is a per-account single-flight: at most one sync pass runs for a
// given mailbox at a time. A trigger arriving while a pass is in flight is
// dropped, not deferred.
type RunGuard struct {
	mu   sync.Mutex
	busy map[string]bool
}

func NewRunGuard() *RunGuard {
	return &RunGuard{
		busy: make(map[string]bool),
	}
}

// TryAcquire marks the account busy, returning false when it already is.
func (g *RunGuard) TryAcquire(email string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy[email] {
		return false
	}
	g.busy[email] = true
	return true
}

// Release frees the account. Releasing an account that is not held is a
// no-op.
func (g *RunGuard) Release(email string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, email)
}
