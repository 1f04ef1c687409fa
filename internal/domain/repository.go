package domain

import (
	"context"
	"time"
)

// CacheRepo stores the set of queued anime keys and the last sync time.
type CacheRepo interface {
	List(ctx context.Context) ([]AnimeKey, error)
	LastSyncedAt(ctx context.Context) (time.Time, error)
	// Add is a no-op for keys already present.
	Add(ctx context.Context, key AnimeKey, at time.Time) error
	// Remove reports whether the key was present.
	Remove(ctx context.Context, key AnimeKey) (bool, error)
	// ReplaceAll swaps the whole set and the sync time in one transaction.
	ReplaceAll(ctx context.Context, keys []AnimeKey, syncedAt time.Time) error
}

// OutboxRepo is the durable FIFO of pending actions.
type OutboxRepo interface {
	Enqueue(ctx context.Context, action PendingAction) error
	// List returns every queued action in creation order.
	List(ctx context.Context) ([]PendingAction, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// SessionRepo persists the connection state written by login/logout.
type SessionRepo interface {
	Get(ctx context.Context) (*Session, error)
	Store(ctx context.Context, session *Session) error
}

// ImportRepo loads a storage dump in one step.
type ImportRepo interface {
	// Import replaces the cache and appends actions to the outbox in one
	// transaction: either all of it is stored or none of it.
	Import(ctx context.Context, keys []AnimeKey, syncedAt time.Time, actions []PendingAction) error
}
