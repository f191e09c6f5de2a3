package status

import "sync/atomic"

// Store hands the latest snapshot and link state to concurrent readers.
// Readers observe either the previous or the new value, never a mix.
type Store struct {
	snap atomic.Pointer[Snapshot]
	link atomic.Pointer[Link]
}

// Snapshot returns the latest published snapshot, or nil before the first
// successful cycle.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Publish replaces the current snapshot and returns the one it replaced.
func (s *Store) Publish(snap *Snapshot) *Snapshot {
	return s.snap.Swap(snap)
}

// Link returns the latest link state.
func (s *Store) Link() Link {
	if l := s.link.Load(); l != nil {
		return *l
	}
	return Link{Health: HealthUnknown}
}

// SetLink records a link state.
func (s *Store) SetLink(l Link) {
	s.link.Store(&l)
}
