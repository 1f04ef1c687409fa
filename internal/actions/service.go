package actions

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/cache"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/outbox"
)

// Trigger schedules a debounced sync
type Trigger interface {
	Trigger()
}

// Receipt is what the user is told right after acting, before the server
// has confirmed anything.
type Receipt struct {
	ID       string            `json:"id"`
	Kind     domain.ActionKind `json:"action"`
	Key      domain.AnimeKey   `json:"animeUrl"`
	Day      *domain.Day       `json:"day,omitempty"`
	Location string            `json:"location,omitempty"`
	Message  string            `json:"message"`
}

// Service turns user toggles into optimistic cache updates plus queued
// actions, then asks for a debounced sync.
type Service struct {
	log      zerolog.Logger
	sessions domain.SessionRepo
	cache    *cache.Service
	outbox   *outbox.Service
	trigger  Trigger
}

func NewService(log zerolog.Logger, sessions domain.SessionRepo, cache *cache.Service, outbox *outbox.Service, trigger Trigger) *Service {
	return &Service{
		log:      log.With().Str("module", "actions").Logger(),
		sessions: sessions,
		cache:    cache,
		outbox:   outbox,
		trigger:  trigger,
	}
}

func (s *Service) Add(ctx context.Context, rawURL string, day *domain.Day) (*Receipt, error) {
	key, err := s.prepare(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if err := s.cache.AddOptimistic(ctx, key); err != nil {
		return nil, err
	}

	action, err := s.outbox.Enqueue(ctx, domain.ActionAdd, key, day, time.Time{})
	if err != nil {
		if rerr := s.cache.RemoveOptimistic(ctx, key); rerr != nil {
			s.log.Error().Err(rerr).Str("anime", key.String()).Msg("failed to revert optimistic add")
		}
		return nil, err
	}

	s.trigger.Trigger()

	location := domain.Location(day)
	s.log.Info().Str("anime", key.String()).Str("location", location).Msg("anime queued for download")
	return &Receipt{
		ID:       action.ID,
		Kind:     domain.ActionAdd,
		Key:      key,
		Day:      day,
		Location: location,
		Message:  "anime added to " + location,
	}, nil
}

func (s *Service) Remove(ctx context.Context, rawURL string) (*Receipt, error) {
	key, err := s.prepare(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	present, err := s.cache.Contains(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.cache.RemoveOptimistic(ctx, key); err != nil {
		return nil, err
	}

	action, err := s.outbox.Enqueue(ctx, domain.ActionRemove, key, nil, time.Time{})
	if err != nil {
		if present {
			if rerr := s.cache.AddOptimistic(ctx, key); rerr != nil {
				s.log.Error().Err(rerr).Str("anime", key.String()).Msg("failed to revert optimistic remove")
			}
		}
		return nil, err
	}

	s.trigger.Trigger()

	s.log.Info().Str("anime", key.String()).Msg("anime queued for removal")
	return &Receipt{
		ID:      action.ID,
		Kind:    domain.ActionRemove,
		Key:     key,
		Message: "anime removed from downloads",
	}, nil
}

// Contains answers from the local cache only
func (s *Service) Contains(ctx context.Context, rawURL string) (bool, error) {
	key, err := s.prepare(ctx, rawURL)
	if err != nil {
		return false, err
	}
	return s.cache.Contains(ctx, key)
}

func (s *Service) prepare(ctx context.Context, rawURL string) (domain.AnimeKey, error) {
	session, err := s.sessions.Get(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to read session")
	}
	if !session.Connected() {
		return "", domain.ErrNotLoggedIn
	}

	key, ok := domain.Normalize(rawURL)
	if !ok {
		return "", errors.Wrapf(domain.ErrInvalidKey, "%q", rawURL)
	}
	return key, nil
}
