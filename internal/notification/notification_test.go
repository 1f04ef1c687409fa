package notification

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varoOP/animesync/internal/domain"
)

func TestHubFanOut(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	a, cancelA := hub.Subscribe(4)
	b, cancelB := hub.Subscribe(4)
	defer cancelB()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Publish(domain.CacheEvent{AnimeList: []domain.AnimeKey{"/a"}})

	for _, ch := range []<-chan domain.CacheEvent{a, b} {
		ev := <-ch
		assert.Equal(t, domain.EventCacheUpdated, ev.Type)
		assert.Equal(t, []domain.AnimeKey{"/a"}, ev.AnimeList)
		assert.False(t, ev.At.IsZero())
	}

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Publish(domain.CacheEvent{Message: "first"})
	hub.Publish(domain.CacheEvent{Message: "second"})

	ev := <-ch
	assert.Equal(t, "first", ev.Message)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestServiceForwardsErrorsToDiscord(t *testing.T) {
	var calls atomic.Int32
	payloads := make(chan discordWebhook, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p discordWebhook
		if err := json.Unmarshal(body, &p); err == nil {
			payloads <- p
		}
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hub := NewHub(zerolog.Nop())
	svc := NewService(zerolog.Nop(), hub, srv.URL)
	ch, cancel := hub.Subscribe(4)
	defer cancel()

	svc.Publish(domain.CacheEvent{Level: domain.LevelSuccess, Message: "ok"})
	svc.Publish(domain.CacheEvent{Level: domain.LevelError, Error: "quota exceeded", AnimeURL: "/catalogue/x"})
	svc.Wait()

	assert.Equal(t, int32(1), calls.Load())
	last := <-payloads
	require.Len(t, last.Embeds, 1)
	assert.Contains(t, last.Embeds[0].Description, "quota exceeded")
	require.Len(t, last.Embeds[0].Fields, 1)
	assert.Equal(t, "/catalogue/x", last.Embeds[0].Fields[0].Value)

	assert.Len(t, ch, 2)
}

func TestServiceWithoutWebhook(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	svc := NewService(zerolog.Nop(), hub, "")
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	svc.Publish(domain.CacheEvent{Level: domain.LevelError, Error: "boom"})
	svc.Wait()

	ev := <-ch
	assert.Equal(t, "boom", ev.Error)
}
