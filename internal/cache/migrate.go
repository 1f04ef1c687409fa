package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
)

// ActionQueue is the part of the outbox the import writes to.
type ActionQueue interface {
	NewAction(kind domain.ActionKind, key domain.AnimeKey, day *domain.Day, createdAt time.Time) (domain.PendingAction, error)
	Len(ctx context.Context) (int, error)
}

// ImportStats summarizes an extension storage import
type ImportStats struct {
	Keys     int
	Actions  int
	Skipped  int
	Replaced bool
}

// ImportExtension loads a browser extension storage dump: the anime list
// replaces the cache and every queued action is appended to the outbox in
// its original order. Entries that do not normalize are skipped. The whole
// dump is stored in one transaction, so a failed import changes nothing and
// can be rerun.
func ImportExtension(ctx context.Context, export *domain.ExtensionExport, cache *Service, queue ActionQueue, repo domain.ImportRepo, log zerolog.Logger) (*ImportStats, error) {
	log.Info().
		Int("anime", len(export.AnimeList)).
		Int("actions", len(export.ActionQueue)).
		Msg("Starting extension storage import")

	stats := &ImportStats{}

	keys := make(domain.KeySet, len(export.AnimeList))
	for _, raw := range export.AnimeList {
		key, ok := domain.Normalize(raw)
		if !ok {
			log.Warn().Str("url", raw).Msg("skipping anime without identity")
			stats.Skipped++
			continue
		}
		keys[key] = struct{}{}
	}
	stats.Keys = len(keys)

	actions := make([]domain.PendingAction, 0, len(export.ActionQueue))
	for i, a := range export.ActionQueue {
		kind := domain.ActionKind(a.Action)
		key, ok := domain.Normalize(a.AnimeURL)
		if !kind.Valid() || !ok {
			log.Warn().Int("index", i).Str("action", a.Action).Str("url", a.AnimeURL).Msg("skipping invalid queued action")
			stats.Skipped++
			continue
		}

		// unknown days are sent as absent
		day, _ := domain.ParseDay(a.Day)

		var createdAt time.Time
		if a.Timestamp > 0 {
			createdAt = time.UnixMilli(a.Timestamp)
		}

		action, err := queue.NewAction(kind, key, day, createdAt)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to import queued action #%d", i)
		}
		actions = append(actions, action)
	}

	observedAt := time.Now()
	if export.CacheTimestamp > 0 {
		observedAt = time.UnixMilli(export.CacheTimestamp)
	}

	replaced, err := cache.Import(ctx, repo, keys, observedAt, actions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to import extension storage")
	}
	stats.Replaced = replaced
	stats.Actions = len(actions)

	pending, err := queue.Len(ctx)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("keys", stats.Keys).
		Int("actions", stats.Actions).
		Int("skipped", stats.Skipped).
		Int("pending", pending).
		Msg("Extension storage import complete")
	return stats, nil
}
