// Package allocator hands out document ids. Ids are strictly increasing and
// never reused by one allocator instance.
package allocator

import "sync"

// Allocator issues strictly increasing document ids.
type Allocator struct {
	mu   sync.Mutex
	last uint64
}

// New returns an allocator whose first id is 1.
func New() *Allocator {
	return &Allocator{}
}

// Seed makes the next call to Next return maxSeen+1.
func (a *Allocator) Seed(maxSeen uint64) {
	a.mu.Lock()
	a.last = maxSeen
	a.mu.Unlock()
}

// Next returns a fresh id.
func (a *Allocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last++
	return a.last
}

// Peek returns the id the next call to Next would return.
func (a *Allocator) Peek() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last + 1
}
