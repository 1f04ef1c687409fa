package domain

import "time"

// EventType names the outbound message sent to UI observers.
const EventCacheUpdated = "cacheUpdated"

// Level classifies the message attached to an event.
type Level string

const (
	LevelNone    Level = ""
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// CacheEvent is published whenever the displayed queued state may have
// changed. AnimeList is nil (null on the wire) when the event only carries
// a message.
type CacheEvent struct {
	Type      string     `json:"type"`
	AnimeList []AnimeKey `json:"animeList"`
	AnimeURL  AnimeKey   `json:"animeUrl,omitempty"`
	Level     Level      `json:"level,omitempty"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	At        time.Time  `json:"at"`
}

// Publisher fans cache events out to observers.
type Publisher interface {
	Publish(event CacheEvent)
}
