package usecase

import "sync"

// lockArena holds one exclusion token per workflow id so backups of
// distinct workflows run in parallel while same-id attempts fail fast.
type lockArena struct {
	mu   sync.Mutex
	held map[string]bool
}

func newLockArena() *lockArena {
	return &lockArena{held: make(map[string]bool)}
}

// TryAcquire claims the token for id without blocking. It returns false
// when the token is already held.
func (a *lockArena) TryAcquire(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.held[id] {
		return false
	}
	a.held[id] = true
	return true
}

func (a *lockArena) Release(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.held, id)
}
