// Package snapshot holds the current published menu snapshot and keeps it
// in sync with durable storage.
package snapshot

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/menu"
	"github.com/columbiacals/menud/internal/metrics"
)

// Store is the single owner of the published snapshot. Readers always see
// either the previous complete snapshot or the new complete snapshot,
// never a partially built one.
type Store struct {
	mu        sync.RWMutex
	current   menu.Snapshot
	published bool

	persister menu.SnapshotPersister
	clock     menu.Clock
	logger    *zap.Logger
}

// New builds a Store backed by the given persister.
func New(persister menu.SnapshotPersister, clock menu.Clock, logger *zap.Logger) *Store {
	return &Store{
		persister: persister,
		clock:     clock,
		logger:    logger,
	}
}

// Read returns the current snapshot. ok is false before the first publish.
func (s *Store) Read() (menu.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.published
}

// Publish replaces the current snapshot. GeneratedAt must move forward;
// a regression means two cycles raced, which the scheduler is supposed to
// make impossible, so it surfaces as a corruption error.
func (s *Store) Publish(ctx context.Context, snap menu.Snapshot) error {
	s.mu.Lock()
	if s.published && !snap.GeneratedAt.After(s.current.GeneratedAt) {
		s.mu.Unlock()
		return &menu.StoreCorruptionError{
			Reason: "publish with non-advancing generated_at",
		}
	}
	s.current = snap
	s.published = true
	s.mu.Unlock()

	metrics.SetSnapshot(len(snap.Halls), countItems(snap), s.clock.Now().Sub(snap.GeneratedAt))

	// Persistence is best effort. The in-memory snapshot is already live;
	// a failed save only costs durability across a restart.
	if err := s.persister.Save(ctx, snap); err != nil {
		s.logger.Warn("snapshot save failed", zap.Error(err))
	}
	return nil
}

// Restore seeds the store from durable storage, typically at boot. A
// missing snapshot is not an error; anything else is returned so the
// caller can decide whether to proceed cold.
func (s *Store) Restore(ctx context.Context) error {
	snap, err := s.persister.Load(ctx)
	if err != nil {
		if errors.Is(err, menu.ErrNoSnapshot) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published {
		// A cycle beat us to it; its snapshot is fresher by definition.
		return nil
	}
	s.current = snap
	s.published = true
	s.logger.Info("snapshot restored",
		zap.Time("generated_at", snap.GeneratedAt),
		zap.Int("halls", len(snap.Halls)))
	return nil
}

func countItems(snap menu.Snapshot) int {
	n := 0
	for _, hall := range snap.Halls {
		for _, meal := range hall.Meals {
			for _, station := range meal.Stations {
				n += len(station.Items)
			}
		}
	}
	return n
}

// NopPersister discards saves and never has anything to load. It backs the
// "noop" storage provider.
type NopPersister struct{}

// Save discards the snapshot.
func (NopPersister) Save(context.Context, menu.Snapshot) error { return nil }

// Load always reports that nothing was persisted.
func (NopPersister) Load(context.Context) (menu.Snapshot, error) {
	return menu.Snapshot{}, menu.ErrNoSnapshot
}
