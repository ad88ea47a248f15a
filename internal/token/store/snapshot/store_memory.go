// Package snapshot persists full ledger snapshots so a restarted server
// resumes from the last saved state instead of the init payload.
package snapshot

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"ftledger/internal/token/state"
	"ftledger/pkg/platform/sentinel"
)

// InMemoryStore keeps the latest snapshot in process memory. It backs tests
// and single-process deployments that accept losing state on restart.
type InMemoryStore struct {
	mu   sync.RWMutex
	snap *state.Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Save replaces the stored snapshot unless a newer version is already held.
func (s *InMemoryStore) Save(_ context.Context, snap state.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && s.snap.Version > snap.Version {
		return nil
	}
	cp := clone(snap)
	s.snap = &cp
	return nil
}

func (s *InMemoryStore) Load(_ context.Context) (state.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return state.Snapshot{}, fmt.Errorf("load snapshot: %w", sentinel.ErrNotFound)
	}
	return clone(*s.snap), nil
}

func clone(snap state.Snapshot) state.Snapshot {
	snap.Balances = slices.Clone(snap.Balances)
	snap.Allowances = slices.Clone(snap.Allowances)
	snap.Admins = slices.Clone(snap.Admins)
	snap.Journal = slices.Clone(snap.Journal)
	return snap
}
