package domain

import "time"

type Config struct {
	DataDir           string        `mapstructure:"data_dir"`
	LogLevel          string        `mapstructure:"log_level"`
	Debounce          time.Duration `mapstructure:"debounce"`
	SyncInterval      time.Duration `mapstructure:"sync_interval"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	ControlAddr       string        `mapstructure:"control_addr"`
	AnimeSamaURL      string        `mapstructure:"anime_sama_url"`
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url"`
}

// Session is the persisted connection state shared with the UI side.
// The sync core only reads ServerURL and LoggedIn.
type Session struct {
	ServerURL    string `yaml:"serverUrl" json:"serverUrl"`
	LastUser     string `yaml:"lastUser" json:"lastUser"`
	LoggedIn     bool   `yaml:"isLoggedIn" json:"isLoggedIn"`
	AnimeSamaURL string `yaml:"anime_sama_url,omitempty" json:"anime_sama_url,omitempty"`
}

// Connected reports whether a sync cycle may talk to the server.
func (s *Session) Connected() bool {
	return s != nil && s.ServerURL != "" && s.LoggedIn
}
