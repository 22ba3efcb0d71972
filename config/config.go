package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds all server configuration.
type Config struct {
	ListenAddr string `json:"listen_addr"` // host:port for the websocket listener

	DataDir  string `json:"data_dir"`  // LevelDB path backing the Namespace root
	CacheDir string `json:"cache_dir"` // directory for hashed cached image files

	PokerAssetsDir string `json:"poker_assets_dir"` // 52-card PNG directory for PokerCardsPlugin
	LocalDBDir     string `json:"localdb_dir"`      // per-card image directory for LocalDBPlugin
	CatalogCSVPath string `json:"catalog_csv_path"` // card metadata CSV for ranking/deck synthesis

	MagicCardsInfoBaseURL string `json:"magiccardsinfo_base_url"` // remote query endpoint

	LocalServingAddress string `json:"local_serving_address"` // address other servers resolve bare "/" resource paths against
	CacheServingPrefix  string `json:"cache_serving_prefix"`  // path prefix the static file server mounts the cache dir under

	MaxGamesPerScope        int `json:"max_games_per_scope"`        // default 5
	KeepaliveTimeoutSeconds int `json:"keepalive_timeout_seconds"`  // default 60; validated only, the session package uses its fixed KeepaliveTimeout
	SmallImageWidth         int `json:"small_image_width"`          // default 123
	SmallImageHeight        int `json:"small_image_height"`         // default 175

	EnableLearner        bool `json:"enable_learner"`          // spawn the background cache-warming goroutine
	LearnerIntervalSeconds int `json:"learner_interval_seconds"` // default 300
}

// DefaultConfig returns a single-process development configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:              ":8080",
		DataDir:                 "./data",
		CacheDir:                "./cache",
		PokerAssetsDir:          "./assets/poker",
		LocalDBDir:              "./assets/localdb",
		CatalogCSVPath:          "./assets/catalog.csv",
		MagicCardsInfoBaseURL:   "http://magiccards.info/query",
		LocalServingAddress:     "http://localhost:8080",
		CacheServingPrefix:      "/cache/",
		MaxGamesPerScope:        5,
		KeepaliveTimeoutSeconds: 60,
		SmallImageWidth:         123,
		SmallImageHeight:        175,
		EnableLearner:           false,
		LearnerIntervalSeconds:  300,
	}
}

// Load reads a JSON config file from path, merges it onto the
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir must not be empty")
	}
	if c.MaxGamesPerScope <= 0 {
		return fmt.Errorf("max_games_per_scope must be positive, got %d", c.MaxGamesPerScope)
	}
	if c.KeepaliveTimeoutSeconds <= 0 {
		return fmt.Errorf("keepalive_timeout_seconds must be positive, got %d", c.KeepaliveTimeoutSeconds)
	}
	if c.SmallImageWidth <= 0 || c.SmallImageHeight <= 0 {
		return fmt.Errorf("small_image_width/height must be positive")
	}
	if c.EnableLearner && c.LearnerIntervalSeconds <= 0 {
		return fmt.Errorf("learner_interval_seconds must be positive when enable_learner is set")
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
