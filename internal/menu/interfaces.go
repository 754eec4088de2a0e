package menu

import (
	"context"
	"time"
)

// Adapter fetches and parses one university's upstream dining data into
// canonical halls. Implementations hold no shared mutable state and own
// every quirk of their upstream (payload shape, time formats, status
// wording).
type Adapter interface {
	University() string
	Fetch(ctx context.Context) ([]DiningHall, error)
}

// SnapshotPersister writes the published snapshot to durable storage and
// reads it back after a restart.
type SnapshotPersister interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
}

// NutritionSource resolves macros for an item name. ok is false on no
// match or a low-confidence match; that is an absence, not an error.
type NutritionSource interface {
	Lookup(ctx context.Context, name string) (macros Macros, ok bool, err error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
