package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	BaseURL   string
	StreamURL string // may contain {gameId}
	APIToken  string
	UserID    string

	CommandMode string // http | ws | auto
	DryRun      bool

	RedrawInterval time.Duration

	ResyncRecomputePointOfView bool
	ResyncReseedWatermark      bool

	HTTPAddr string

	RedisURL    string
	DatabaseURL string
	MirrorTTL   time.Duration

	CatalogDir string
}

// LoadDotEnv applies a .env file when one exists. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		CommandMode:           "http",
		RedrawInterval:        250 * time.Millisecond,
		ResyncReseedWatermark: true,
		MirrorTTL:             6 * time.Hour,
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("LIVE_BASE_URL")), "/")
	cfg.StreamURL = strings.TrimSpace(os.Getenv("LIVE_STREAM_URL"))
	cfg.APIToken = strings.TrimSpace(os.Getenv("LIVE_API_TOKEN"))
	cfg.UserID = strings.TrimSpace(os.Getenv("LIVE_USER_ID"))
	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("LIVE_HTTP_ADDR"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.CatalogDir = strings.TrimSpace(os.Getenv("MSG_CATALOG_DIR"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LIVE_COMMAND_MODE"))); v != "" {
		switch v {
		case "http", "ws", "auto":
			cfg.CommandMode = v
		default:
			return nil, fmt.Errorf("LIVE_COMMAND_MODE must be http, ws or auto: %q", v)
		}
	}
	if v := strings.TrimSpace(os.Getenv("LIVE_DRY_RUN")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DryRun = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("LIVE_REDRAW_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RedrawInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("LIVE_RESYNC_RECOMPUTE_POV")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ResyncRecomputePointOfView = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("LIVE_RESYNC_RESEED_WATERMARK")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ResyncReseedWatermark = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("LIVE_MIRROR_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.MirrorTTL = d
		}
	}

	if cfg.BaseURL == "" {
		return nil, errors.New("LIVE_BASE_URL is required")
	}
	if cfg.StreamURL == "" {
		return nil, errors.New("LIVE_STREAM_URL is required")
	}
	return cfg, nil
}

// StreamURLFor expands {gameId} in the configured stream URL.
func (c *AppConfig) StreamURLFor(gameID string) string {
	if c == nil {
		return ""
	}
	if strings.Contains(c.StreamURL, "{gameId}") {
		return strings.ReplaceAll(c.StreamURL, "{gameId}", gameID)
	}
	return strings.TrimRight(c.StreamURL, "/") + "/" + gameID
}

// AuthHeaders returns the bearer header used by both the command client and the stream handshake.
func (c *AppConfig) AuthHeaders() map[string]string {
	m := map[string]string{}
	if c != nil && c.APIToken != "" {
		m["Authorization"] = "Bearer " + c.APIToken
	}
	return m
}
