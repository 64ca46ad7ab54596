// Package config loads this module's runtime configuration from a YAML
// file overlaid with environment variables, using koanf the way
// trailarr-trailarr's own settings.go loads its config.yml (this module's
// ambient stack just swaps koanf in for that file's hand-rolled yaml.v3
// read/merge).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// PlayerGroup is one set of player instances managing a library (spec.md
// §4.K); the adapter it feeds is internal/player.
type PlayerGroup struct {
	LibraryID   int64             `koanf:"library_id"`
	Type        string            `koanf:"type"` // "plex", "jellyfin", ...
	BaseURL     string            `koanf:"base_url"`
	Token       string            `koanf:"token"`
	SectionID   string            `koanf:"section_id"` // Plex library section id, unused by other player types
	SkipActive  bool              `koanf:"skip_active"`
	PathMapping map[string]string `koanf:"path_mapping"`
}

// NotifyChannel is one containrrr/shoutrrr destination URL.
type NotifyChannel struct {
	Name string `koanf:"name"`
	URL  string `koanf:"url"`
}

// WebhookSource is one external downloader's intake config.
type WebhookSource struct {
	Name         string `koanf:"name"`
	HMACSecret   string `koanf:"hmac_secret"`
	PathPrefix   string `koanf:"path_prefix"` // source-side path, rewritten to the local mount below
	LocalPrefix  string `koanf:"local_prefix"`
}

// ProviderKeys holds API credentials for the metadata/image providers.
type ProviderKeys struct {
	TMDbAPIKey    string `koanf:"tmdb_api_key"`
	FanartAPIKey  string `koanf:"fanart_api_key"`
}

// Config is the fully resolved runtime configuration, constructed once in
// cmd/server/main.go and threaded into every component as an explicit
// field (spec.md §9 "no package-level singletons").
type Config struct {
	HTTPAddr      string          `koanf:"http_addr"`
	DatabaseDSN   string          `koanf:"database_dsn"`
	CacheRoot     string          `koanf:"cache_root"`
	LogLevel      string          `koanf:"log_level"`
	LeaseDuration time.Duration   `koanf:"lease_duration"`
	Workers       int             `koanf:"workers"`
	ShutdownGrace time.Duration   `koanf:"shutdown_grace"`
	Providers     ProviderKeys    `koanf:"providers"`
	Players       []PlayerGroup   `koanf:"players"`
	Notifications []NotifyChannel `koanf:"notifications"`
	Webhooks      []WebhookSource `koanf:"webhooks"`
}

func defaults() *koanf.Koanf {
	k := koanf.New(".")
	_ = k.Load(confmapDefaults(), nil)
	return k
}

// Load reads path (if it exists) then overlays CURATOR_-prefixed
// environment variables, mirroring trailarr-trailarr's own
// config-file-plus-env-override precedence in settings.go.
func Load(path string) (*Config, error) {
	k := defaults()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("CURATOR_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CURATOR_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func confmapDefaults() koanf.Provider {
	return defaultsProvider{
		"http_addr":      "0.0.0.0:8090",
		"cache_root":     "/var/lib/curator/cache",
		"log_level":      "info",
		"lease_duration": "2m",
		"workers":        4,
		"shutdown_grace": "30s",
	}
}

// defaultsProvider is a minimal koanf.Provider over a static map, avoiding
// a dependency on koanf's confmap sub-package for six scalar defaults.
type defaultsProvider map[string]any

func (d defaultsProvider) Read() (map[string]any, error) { return d, nil }
func (d defaultsProvider) ReadBytes() ([]byte, error)     { return nil, fmt.Errorf("not supported") }
