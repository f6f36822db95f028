package paging

import (
	"context"
	"time"
)

// Snapshot is the persisted form of one controller: its items encoded as a
// JSON array and its cursor.
type Snapshot struct {
	Key     string
	Items   []byte
	Cursor  Cursor
	SavedAt time.Time
}

// Store persists snapshots between runs.
type Store interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	// LoadSnapshot returns ok=false when nothing is stored under key.
	LoadSnapshot(ctx context.Context, key string) (snap Snapshot, ok bool, err error)
	DeleteSnapshot(ctx context.Context, key string) error
}
