package nav

import "sync"

// Snapshot pins a repository index for the lifetime of a session tree,
// the generation-counter ownership mechanism this package adapts from
// the teacher's memory-ownership transfer handles: a Pin captures the
// generation at acquisition time and is stale once the Snapshot's
// generation has moved on.
type Snapshot struct {
	mu         sync.RWMutex
	index      Index
	root       string
	generation uint64
}

// NewSnapshot wraps an Index bound to a repository root. The core never
// mutates the underlying index; snapshot invalidation is driven by the
// host when it detects the repository changed between sessions.
func NewSnapshot(index Index, root string) *Snapshot {
	return &Snapshot{index: index, root: root, generation: 1}
}

// Root returns the repository root this snapshot is bound to.
func (s *Snapshot) Root() string { return s.root }

// Generation returns the current generation counter.
func (s *Snapshot) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Invalidate bumps the generation, marking every Pin taken before this
// call as stale.
func (s *Snapshot) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// Pin captures ownership of a Snapshot at a point in time. A session
// tree holds exactly one Pin for its entire lifetime.
type Pin struct {
	snapshot   *Snapshot
	generation uint64
}

// Pin acquires a Pin at the Snapshot's current generation.
func (s *Snapshot) Pin() *Pin {
	return &Pin{snapshot: s, generation: s.Generation()}
}

// Stale reports whether the Snapshot has been invalidated since this Pin
// was acquired.
func (p *Pin) Stale() bool {
	return p.generation != p.snapshot.Generation()
}
