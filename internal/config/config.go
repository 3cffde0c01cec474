// Package config resolves runtime settings for the TravelLife client.
// Precedence, lowest to highest: built-in defaults, config file, environment
// variables (TRAVELLIFE_ prefix).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the resolved settings.
type Config struct {
	// DataDir is where the databases and the tile cache live.
	DataDir string `mapstructure:"data_dir"`

	// ServerURL is the backend base URL.
	ServerURL string `mapstructure:"server_url"`

	// RequestTimeout bounds every server request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// PingInterval is how often the prober checks reachability.
	PingInterval time.Duration `mapstructure:"ping_interval"`

	// QuotaBytes is the local storage budget; 0 means unknown.
	QuotaBytes int64 `mapstructure:"quota_bytes"`

	// Sync tunes the drain loop.
	Sync SyncConfig `mapstructure:"sync"`

	// Tiles tunes the offline-map pre-fetch.
	Tiles TilesConfig `mapstructure:"tiles"`
}

// SyncConfig mirrors syncengine.Config.
type SyncConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	Parallelism int           `mapstructure:"parallelism"`

	// DrainInterval is how often the run loop sweeps the queue while
	// online, picking up operations whose backoff expired.
	DrainInterval time.Duration `mapstructure:"drain_interval"`
}

// TilesConfig mirrors tiles.Config plus zoom/buffer defaults for the CLI.
type TilesConfig struct {
	URLTemplate     string  `mapstructure:"url_template"`
	Concurrency     int     `mapstructure:"concurrency"`
	AverageTileSize int64   `mapstructure:"average_tile_size"`
	MinZoom         int     `mapstructure:"min_zoom"`
	MaxZoom         int     `mapstructure:"max_zoom"`
	BufferKm        float64 `mapstructure:"buffer_km"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DataDir = filepath.Join(home, ".travellife")
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 15 * time.Second
	c.PingInterval = 3 * time.Second
	c.QuotaBytes = 0
	c.Sync = SyncConfig{
		MaxRetries:    5,
		BackoffBase:   2 * time.Second,
		BackoffCap:    5 * time.Minute,
		Parallelism:   4,
		DrainInterval: 30 * time.Second,
	}
	c.Tiles = TilesConfig{
		URLTemplate:     "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Concurrency:     4,
		AverageTileSize: 20_000,
		MinZoom:         10,
		MaxZoom:         14,
		BufferKm:        10,
	}
}

// Load constructs a Config: defaults, then the config file (the given path,
// or travellife.yaml next to the data dir when path is empty and the file
// exists), then TRAVELLIFE_* environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	v := viper.New()
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("server_url", cfg.ServerURL)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("ping_interval", cfg.PingInterval)
	v.SetDefault("quota_bytes", cfg.QuotaBytes)
	v.SetDefault("sync.max_retries", cfg.Sync.MaxRetries)
	v.SetDefault("sync.backoff_base", cfg.Sync.BackoffBase)
	v.SetDefault("sync.backoff_cap", cfg.Sync.BackoffCap)
	v.SetDefault("sync.parallelism", cfg.Sync.Parallelism)
	v.SetDefault("sync.drain_interval", cfg.Sync.DrainInterval)
	v.SetDefault("tiles.url_template", cfg.Tiles.URLTemplate)
	v.SetDefault("tiles.concurrency", cfg.Tiles.Concurrency)
	v.SetDefault("tiles.average_tile_size", cfg.Tiles.AverageTileSize)
	v.SetDefault("tiles.min_zoom", cfg.Tiles.MinZoom)
	v.SetDefault("tiles.max_zoom", cfg.Tiles.MaxZoom)
	v.SetDefault("tiles.buffer_km", cfg.Tiles.BufferKm)

	v.SetEnvPrefix("TRAVELLIFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("travellife")
		v.AddConfigPath(".")
		v.AddConfigPath(cfg.DataDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
