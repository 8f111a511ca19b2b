package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	yaml "gopkg.in/yaml.v3"
)

// AppConfig is resolved from Default(), then an optional YAML file named by
// CHESSD_CONFIG, then environment variables.
type AppConfig struct {
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	KeyPrefix   string `yaml:"key_prefix" env:"CHESS_KEY_PREFIX"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	ListenAddr    string        `yaml:"listen_addr" env:"CHESSD_LISTEN"`
	EventsAddr    string        `yaml:"events_addr" env:"CHESSD_EVENTS_LISTEN"`
	ChainID       string        `yaml:"chain_id" env:"CHESSD_CHAIN_ID"`
	BlockInterval time.Duration `yaml:"block_interval" env:"CHESSD_BLOCK_INTERVAL"`
	GenesisHeight uint64        `yaml:"genesis_height" env:"CHESSD_GENESIS_HEIGHT"`

	DefaultPageLimit int `yaml:"default_page_limit" env:"CHESS_DEFAULT_PAGE_LIMIT"`
	MaxPageLimit     int `yaml:"max_page_limit" env:"CHESS_MAX_PAGE_LIMIT"`

	MessagesDir string `yaml:"messages_dir" env:"CHESS_MESSAGES_DIR"`
}

func Default() *AppConfig {
	return &AppConfig{
		KeyPrefix:        "chess",
		ListenAddr:       ":8545",
		EventsAddr:       ":8546",
		ChainID:          "chess-devnet",
		BlockInterval:    time.Second,
		GenesisHeight:    1,
		DefaultPageLimit: 10,
		MaxPageLimit:     100,
	}
}

// Load resolves the configuration of the running process.
func Load() (*AppConfig, error) {
	return LoadFile(strings.TrimSpace(os.Getenv("CHESSD_CONFIG")))
}

// LoadFile is Load with an explicit YAML path; empty skips the file.
func LoadFile(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.DefaultPageLimit <= 0 {
		return fmt.Errorf("default page limit must be positive, got %d", c.DefaultPageLimit)
	}
	if c.MaxPageLimit < c.DefaultPageLimit {
		return fmt.Errorf("max page limit %d is below default %d", c.MaxPageLimit, c.DefaultPageLimit)
	}
	if c.BlockInterval <= 0 {
		return fmt.Errorf("block interval must be positive, got %s", c.BlockInterval)
	}
	return nil
}
