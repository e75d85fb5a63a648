// Package checkout provides per-comic mutual exclusion. Any multi-step
// mutation of one comic (page hashing, scraping, rebuild) runs inside a
// checkout so concurrently scheduled pipeline partitions never interleave
// writes to the same item. Unrelated comics proceed fully in parallel.
package checkout

import "sync"

// Manager maps comic identifiers to lazily created exclusive locks. The map
// only grows; cardinality is bounded by library size, not request volume.
type Manager struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewManager constructs an empty checkout manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[int64]*sync.Mutex)}
}

// CheckOut acquires exclusive ownership of the comic identifier, blocking
// until any current holder checks it back in. Re-entering from the same
// goroutine before CheckIn is a usage error and deadlocks, as with any
// sync.Mutex.
func (m *Manager) CheckOut(id int64) {
	m.lockFor(id).Lock()
}

// CheckIn releases ownership of the comic identifier.
func (m *Manager) CheckIn(id int64) {
	m.lockFor(id).Unlock()
}

// With runs fn while holding the checkout for id, releasing on every exit
// path including panics. Prefer this over manual CheckOut/CheckIn pairs.
func (m *Manager) With(id int64, fn func() error) error {
	m.CheckOut(id)
	defer m.CheckIn(id)
	return fn()
}

func (m *Manager) lockFor(id int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = new(sync.Mutex)
		m.locks[id] = lock
	}
	return lock
}

// Size returns the number of identifiers seen so far. Diagnostic only.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
