package domain

// ExtensionExport is a JSON dump of the browser extension's local storage.
// Timestamps are milliseconds since the epoch.
type ExtensionExport struct {
	AnimeList      []string          `json:"animeList"`
	CacheTimestamp int64             `json:"cacheTimestamp"`
	ActionQueue    []ExtensionAction `json:"actionQueue"`
}

type ExtensionAction struct {
	Action    string `json:"action"`
	AnimeURL  string `json:"animeUrl"`
	Day       string `json:"day"`
	Timestamp int64  `json:"timestamp"`
}
