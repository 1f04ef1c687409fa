package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/varoOP/animesync/internal/domain"
)

const (
	DefaultDebounce          = time.Second
	DefaultSyncInterval      = 2 * time.Minute
	DefaultHTTPTimeout       = 10 * time.Second
	DefaultRequestsPerSecond = 5.0
	DefaultControlAddr       = "127.0.0.1:5002"
	DefaultAnimeSamaURL      = "https://anime-sama.eu"
)

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("debounce", DefaultDebounce)
	v.SetDefault("sync_interval", DefaultSyncInterval)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("requests_per_second", DefaultRequestsPerSecond)
	v.SetDefault("control_addr", DefaultControlAddr)
	v.SetDefault("anime_sama_url", DefaultAnimeSamaURL)
	v.SetDefault("discord_webhook_url", "")
}

// Load loads configuration from multiple sources:
// 1. Config file (config.yaml, optional)
// 2. Environment variables (ANIMESYNC_*)
// 3. Flags bound by the root command
func Load() (*domain.Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v
func LoadFrom(v *viper.Viper) (*domain.Config, error) {
	SetDefaults(v)

	cfg := &domain.Config{
		DataDir:           v.GetString("data_dir"),
		LogLevel:          v.GetString("log_level"),
		Debounce:          v.GetDuration("debounce"),
		SyncInterval:      v.GetDuration("sync_interval"),
		HTTPTimeout:       v.GetDuration("http_timeout"),
		RequestsPerSecond: v.GetFloat64("requests_per_second"),
		ControlAddr:       v.GetString("control_addr"),
		AnimeSamaURL:      v.GetString("anime_sama_url"),
		DiscordWebhookURL: v.GetString("discord_webhook_url"),
	}

	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required (set via config.yaml or ANIMESYNC_DATA_DIR environment variable)")
	}
	if cfg.Debounce <= 0 {
		return nil, fmt.Errorf("invalid debounce: %s (must be positive)", cfg.Debounce)
	}
	if cfg.SyncInterval <= 0 {
		return nil, fmt.Errorf("invalid sync_interval: %s (must be positive)", cfg.SyncInterval)
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("invalid http_timeout: %s (must be positive)", cfg.HTTPTimeout)
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("invalid requests_per_second: %v (must be positive)", cfg.RequestsPerSecond)
	}

	return cfg, nil
}
