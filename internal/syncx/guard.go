// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Guard wraps an RWMutex around a value that is read often and written by
// a few goroutines. Reference fields (slices, maps) are shared with the
// guarded value, so readers copy them inside View.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Update executes fn while holding the write lock.
func (g *Guard[T]) Update(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}

// View executes fn while holding the read lock. fn must not retain v's
// reference fields past its return.
func (g *Guard[T]) View(fn func(v T)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.value)
}
