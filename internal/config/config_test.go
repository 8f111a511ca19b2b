package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("REDIS_URL", " redis://localhost:6379/2 ")
	t.Setenv("CHESS_MAX_PAGE_LIMIT", "50")
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379/2" {
		t.Fatalf("redis url %q", cfg.RedisURL)
	}
	if cfg.MaxPageLimit != 50 || cfg.DefaultPageLimit != 10 || cfg.BlockInterval != time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chessd.yaml")
	body := "redis_url: redis://file:6379/0\nblock_interval: 250ms\ndefault_page_limit: 5\nkey_prefix: devnet\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CHESS_KEY_PREFIX", "override")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.RedisURL != "redis://file:6379/0" || cfg.BlockInterval != 250*time.Millisecond || cfg.DefaultPageLimit != 5 {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.KeyPrefix != "override" {
		t.Fatalf("env should win, prefix=%q", cfg.KeyPrefix)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing redis url should fail")
	}
	cfg.RedisURL = "redis://x:1/0"
	cfg.MaxPageLimit = 3
	if err := cfg.Validate(); err == nil {
		t.Fatalf("max below default should fail")
	}
}
