package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/metrics"
)

// Service is the durable FIFO of actions the server has not confirmed yet.
// Actions are never deduplicated: two toggles of the same anime are replayed
// in creation order.
type Service struct {
	log  zerolog.Logger
	repo domain.OutboxRepo
	now  func() time.Time
}

func NewService(log zerolog.Logger, repo domain.OutboxRepo) *Service {
	return &Service{
		log:  log.With().Str("module", "outbox").Logger(),
		repo: repo,
		now:  time.Now,
	}
}

// NewAction builds an action with a fresh id without storing it.
// A zero createdAt means now.
func (s *Service) NewAction(kind domain.ActionKind, key domain.AnimeKey, day *domain.Day, createdAt time.Time) (domain.PendingAction, error) {
	if !kind.Valid() {
		return domain.PendingAction{}, errors.Errorf("invalid action kind %q", kind)
	}
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	return domain.PendingAction{
		ID:        uuid.NewString(),
		Kind:      kind,
		Key:       key,
		Day:       day,
		CreatedAt: createdAt,
	}, nil
}

// Enqueue appends a new action
func (s *Service) Enqueue(ctx context.Context, kind domain.ActionKind, key domain.AnimeKey, day *domain.Day, createdAt time.Time) (domain.PendingAction, error) {
	action, err := s.NewAction(kind, key, day, createdAt)
	if err != nil {
		return domain.PendingAction{}, err
	}

	if err := s.repo.Enqueue(ctx, action); err != nil {
		return domain.PendingAction{}, errors.Wrapf(err, "failed to enqueue %s %s", kind, key)
	}

	s.log.Debug().Str("id", action.ID).Str("action", string(kind)).Str("anime", key.String()).Msg("action queued")
	s.refreshGauge(ctx)
	return action, nil
}

// DrainAll returns every queued action in FIFO order without removing any.
// Callers confirm delivery with Clear.
func (s *Service) DrainAll(ctx context.Context) ([]domain.PendingAction, error) {
	actions, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read outbox")
	}
	return actions, nil
}

// Clear removes the given delivered actions. Actions enqueued after the
// matching DrainAll are left untouched.
func (s *Service) Clear(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.repo.Delete(ctx, ids); err != nil {
		return errors.Wrap(err, "failed to clear outbox")
	}

	s.log.Debug().Int("count", len(ids)).Msg("outbox cleared")
	s.refreshGauge(ctx)
	return nil
}

// Len counts queued actions and refreshes the pending gauge
func (s *Service) Len(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count outbox")
	}
	metrics.OutboxPending.Set(float64(n))
	return n, nil
}

func (s *Service) refreshGauge(ctx context.Context) {
	if n, err := s.repo.Count(ctx); err == nil {
		metrics.OutboxPending.Set(float64(n))
	}
}
