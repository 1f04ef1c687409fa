package domain

import (
	"errors"
	"time"
)

var (
	ErrNotConfigured  = errors.New("no companion server configured")
	ErrNotLoggedIn    = errors.New("please log in to the companion server first")
	ErrInvalidKey     = errors.New("cannot determine anime identity from url")
	ErrUnknownMessage = errors.New("unknown control message")
)

// CacheSnapshot is a point-in-time read of the local cache.
type CacheSnapshot struct {
	Keys         []AnimeKey `json:"animeList"`
	LastSyncedAt time.Time  `json:"cacheTimestamp"`
	Pending      int        `json:"pending"`
}
