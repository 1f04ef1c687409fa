package domain

import "context"

// RemoteAnime is one entry of GET /api/anime-list.
type RemoteAnime struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	Season   string `json:"season,omitempty"`
	Langage  string `json:"langage,omitempty"`
	Day      *Day   `json:"day,omitempty"`
	Location string `json:"location,omitempty"`
}

// ActionResult is the answer to add-download and remove-download.
type ActionResult struct {
	OK            bool   `json:"ok"`
	AlreadyExists bool   `json:"already_exists,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

type AppInfo struct {
	OK                 bool   `json:"ok"`
	AnimeSamaURL       string `json:"anime_sama_url,omitempty"`
	AppName            string `json:"app_name,omitempty"`
	LocalDashboardPort int    `json:"local_dashboard_port,omitempty"`
}

type LoginResult struct {
	OK    bool   `json:"ok"`
	User  string `json:"user,omitempty"`
	Error string `json:"error,omitempty"`
}

type Dashboard struct {
	Data struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"data"`
}

type Theme struct {
	OK     bool           `json:"ok"`
	Theme  string         `json:"theme,omitempty"`
	Colors map[string]any `json:"colors"`
}

// RemoteAPI is the companion server as seen by the sync core.
type RemoteAPI interface {
	Ping(ctx context.Context) error
	AnimeList(ctx context.Context) ([]RemoteAnime, error)
	AddDownload(ctx context.Context, key AnimeKey, day *Day) (*ActionResult, error)
	RemoveDownload(ctx context.Context, key AnimeKey) (*ActionResult, error)
}

// Dialer returns the RemoteAPI for a server base URL.
type Dialer func(serverURL string) RemoteAPI
