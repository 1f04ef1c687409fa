package notification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
)

// Service is the composite change notifier: every event goes to the hub,
// error events are additionally forwarded to Discord when a webhook is set.
type Service struct {
	log     zerolog.Logger
	hub     *Hub
	discord *DiscordService
	wg      sync.WaitGroup
}

// NewService creates a new notification service
func NewService(log zerolog.Logger, hub *Hub, webhookURL string) *Service {
	var discord *DiscordService
	if webhookURL != "" {
		discord = NewDiscordService(log, webhookURL)
	}

	return &Service{
		log:     log.With().Str("module", "notification").Logger(),
		hub:     hub,
		discord: discord,
	}
}

var _ domain.Publisher = (*Service)(nil)

func (s *Service) Publish(event domain.CacheEvent) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	s.hub.Publish(event)

	if s.discord == nil || event.Level != domain.LevelError {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.discord.SendEvent(ctx, event); err != nil {
			s.log.Warn().Err(err).Msg("failed to forward error to discord")
		}
	}()
}

// Hub returns the in-process fan-out used by subscribers
func (s *Service) Hub() *Hub {
	return s.hub
}

// Wait blocks until every forwarded notification has been sent
func (s *Service) Wait() {
	s.wg.Wait()
}
