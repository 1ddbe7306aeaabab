package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LIVE_BASE_URL", "https://lichess.example/")
	t.Setenv("LIVE_STREAM_URL", "wss://lichess.example/api/board/game/stream/{gameId}")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://lichess.example" {
		t.Fatalf("base url not trimmed: %q", cfg.BaseURL)
	}
	if cfg.CommandMode != "http" || cfg.RedrawInterval != 250*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ResyncRecomputePointOfView || !cfg.ResyncReseedWatermark {
		t.Fatalf("unexpected resync defaults: %+v", cfg)
	}
}

func TestLoadRequiresBaseURL(t *testing.T) {
	t.Setenv("LIVE_BASE_URL", "")
	t.Setenv("LIVE_STREAM_URL", "wss://x")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without LIVE_BASE_URL")
	}
}

func TestLoadRejectsUnknownCommandMode(t *testing.T) {
	setRequired(t)
	t.Setenv("LIVE_COMMAND_MODE", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad command mode")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LIVE_COMMAND_MODE", "AUTO")
	t.Setenv("LIVE_REDRAW_INTERVAL_MS", "100")
	t.Setenv("LIVE_RESYNC_RECOMPUTE_POV", "true")
	t.Setenv("LIVE_RESYNC_RESEED_WATERMARK", "false")
	t.Setenv("LIVE_DRY_RUN", "1")
	t.Setenv("LIVE_MIRROR_TTL", "30m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommandMode != "auto" || cfg.RedrawInterval != 100*time.Millisecond || !cfg.DryRun {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.ResyncRecomputePointOfView || cfg.ResyncReseedWatermark {
		t.Fatalf("resync overrides not applied: %+v", cfg)
	}
	if cfg.MirrorTTL != 30*time.Minute {
		t.Fatalf("ttl=%v", cfg.MirrorTTL)
	}
}

func TestStreamURLFor(t *testing.T) {
	c := &AppConfig{StreamURL: "wss://h/stream/{gameId}"}
	if got := c.StreamURLFor("abc123"); got != "wss://h/stream/abc123" {
		t.Fatalf("got %q", got)
	}
	c.StreamURL = "wss://h/stream/"
	if got := c.StreamURLFor("abc123"); got != "wss://h/stream/abc123" {
		t.Fatalf("got %q", got)
	}
}

func TestAuthHeaders(t *testing.T) {
	c := &AppConfig{APIToken: "tok"}
	if got := c.AuthHeaders()["Authorization"]; got != "Bearer tok" {
		t.Fatalf("got %q", got)
	}
	if len((&AppConfig{}).AuthHeaders()) != 0 {
		t.Fatalf("expected no headers without token")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("LIVE_DOTENV_MARKER=yes\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LIVE_DOTENV_MARKER", "")
	os.Unsetenv("LIVE_DOTENV_MARKER")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if os.Getenv("LIVE_DOTENV_MARKER") != "yes" {
		t.Fatalf("dotenv value not applied")
	}
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}
