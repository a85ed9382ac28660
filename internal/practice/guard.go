package practice

import "sync"

// RenameGuard keeps dentist renames from interleaving with booking commits
// in the same process. Commits hold it shared, renames exclusively. A nil
// guard runs fn unguarded.
type RenameGuard struct {
	mu sync.RWMutex
}

func (g *RenameGuard) Shared(fn func() error) error {
	if g == nil {
		return fn()
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn()
}

func (g *RenameGuard) Exclusive(fn func() error) error {
	if g == nil {
		return fn()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}
