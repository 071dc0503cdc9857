package recompute

import (
	"sync/atomic"

	"uph-engine/internal/storage"
)

// SnapshotStore holds the published result set. Readers never block and
// always see a complete snapshot.
type SnapshotStore struct {
	current atomic.Pointer[storage.Snapshot]
}

func (s *SnapshotStore) Load() *storage.Snapshot {
	return s.current.Load()
}

func (s *SnapshotStore) Swap(snap *storage.Snapshot) {
	s.current.Store(snap)
}
