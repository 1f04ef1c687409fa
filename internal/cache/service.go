package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/metrics"
)

// Service is the local view of which anime are queued on the server.
// Mutations are serialized so every read-modify-write is atomic with
// respect to other callers of the same Service.
type Service struct {
	log       zerolog.Logger
	repo      domain.CacheRepo
	publisher domain.Publisher
	now       func() time.Time

	mu sync.Mutex
}

func NewService(log zerolog.Logger, repo domain.CacheRepo, publisher domain.Publisher) *Service {
	return &Service{
		log:       log.With().Str("module", "cache").Logger(),
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *Service) Contains(ctx context.Context, key domain.AnimeKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return set.Has(key), nil
}

// Keys returns the cached keys in sorted order
func (s *Service) Keys(ctx context.Context) ([]domain.AnimeKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return set.Sorted(), nil
}

func (s *Service) Snapshot(ctx context.Context) (domain.CacheSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load(ctx)
	if err != nil {
		return domain.CacheSnapshot{}, err
	}

	synced, err := s.repo.LastSyncedAt(ctx)
	if err != nil {
		return domain.CacheSnapshot{}, errors.Wrap(err, "failed to read sync time")
	}

	return domain.CacheSnapshot{Keys: set.Sorted(), LastSyncedAt: synced}, nil
}

// AddOptimistic inserts key without waiting for the server. Adding a key
// that is already cached is a no-op and publishes nothing.
func (s *Service) AddOptimistic(ctx context.Context, key domain.AnimeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.load(ctx)
	if err != nil {
		return err
	}
	if set.Has(key) {
		return nil
	}

	if err := s.repo.Add(ctx, key, s.now()); err != nil {
		return errors.Wrapf(err, "failed to add %s", key)
	}
	set[key] = struct{}{}

	s.log.Debug().Str("anime", key.String()).Msg("added to cache")
	s.changed(set, domain.CacheEvent{AnimeURL: key})
	return nil
}

func (s *Service) RemoveOptimistic(ctx context.Context, key domain.AnimeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.repo.Remove(ctx, key)
	if err != nil {
		return errors.Wrapf(err, "failed to remove %s", key)
	}
	if !removed {
		return nil
	}

	set, err := s.load(ctx)
	if err != nil {
		return err
	}

	s.log.Debug().Str("anime", key.String()).Msg("removed from cache")
	s.changed(set, domain.CacheEvent{AnimeURL: key})
	return nil
}

// ReplaceAll swaps the cached set for keys when, and only when, the two
// sets differ. It reports whether a write happened.
func (s *Service) ReplaceAll(ctx context.Context, keys domain.KeySet, observedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if current.Equal(keys) {
		s.log.Trace().Int("keys", len(keys)).Msg("remote list unchanged")
		return false, nil
	}

	sorted := keys.Sorted()
	if err := s.repo.ReplaceAll(ctx, sorted, observedAt); err != nil {
		return false, errors.Wrap(err, "failed to replace cache")
	}

	s.log.Debug().Int("before", len(current)).Int("after", len(keys)).Msg("cache replaced from server")
	s.changed(keys, domain.CacheEvent{})
	return true, nil
}

// Import stores keys and the queued actions through repo in one
// transaction. Observers are told when the cached set changed.
func (s *Service) Import(ctx context.Context, repo domain.ImportRepo, keys domain.KeySet, observedAt time.Time, actions []domain.PendingAction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	if err := repo.Import(ctx, keys.Sorted(), observedAt, actions); err != nil {
		return false, errors.Wrap(err, "failed to import")
	}

	if current.Equal(keys) {
		return false, nil
	}
	s.changed(keys, domain.CacheEvent{})
	return true, nil
}

// Rollback undoes an optimistic add the server rejected and tells observers
// why, so they can revert the displayed state.
func (s *Service) Rollback(ctx context.Context, key domain.AnimeKey, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.Remove(ctx, key); err != nil {
		return errors.Wrapf(err, "failed to roll back %s", key)
	}

	set, err := s.load(ctx)
	if err != nil {
		return err
	}

	s.log.Info().Str("anime", key.String()).Str("reason", reason).Msg("rolled back optimistic add")
	s.changed(set, domain.CacheEvent{AnimeURL: key, Level: domain.LevelError, Error: reason})
	return nil
}

// load reads the stored entries as a set, dropping duplicates and entries
// that no longer normalize.
func (s *Service) load(ctx context.Context) (domain.KeySet, error) {
	keys, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cache")
	}

	set := make(domain.KeySet, len(keys))
	for _, k := range keys {
		if n, ok := domain.Normalize(string(k)); ok {
			set[n] = struct{}{}
		}
	}
	return set, nil
}

func (s *Service) changed(set domain.KeySet, event domain.CacheEvent) {
	metrics.CacheEntries.Set(float64(len(set)))

	event.Type = domain.EventCacheUpdated
	event.AnimeList = set.Sorted()
	event.At = s.now()
	s.publisher.Publish(event)
}
