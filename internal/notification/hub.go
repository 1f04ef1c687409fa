package notification

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/metrics"
)

// Hub fans cache events out to in-process subscribers. Delivery never
// blocks the publisher: a subscriber whose buffer is full misses the event.
type Hub struct {
	log zerolog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan domain.CacheEvent
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:  log.With().Str("module", "notification").Str("type", "hub").Logger(),
		subs: make(map[int]chan domain.CacheEvent),
	}
}

var _ domain.Publisher = (*Hub)(nil)

// Subscribe registers a new observer. The returned cancel func unregisters
// it and closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe(buffer int) (<-chan domain.CacheEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.CacheEvent, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	n := len(h.subs)
	h.mu.Unlock()

	metrics.EventSubscribers.Set(float64(n))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			n := len(h.subs)
			close(ch)
			h.mu.Unlock()
			metrics.EventSubscribers.Set(float64(n))
		})
	}
}

func (h *Hub) Publish(event domain.CacheEvent) {
	if event.Type == "" {
		event.Type = domain.EventCacheUpdated
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	metrics.EventsPublishedTotal.Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			metrics.EventsDroppedTotal.Inc()
			h.log.Debug().Int("subscriber", id).Msg("subscriber not keeping up, event dropped")
		}
	}
}

// Subscribers returns the number of registered observers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
