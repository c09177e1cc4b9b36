// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port             string
	BackendURL       string
	UserID           string
	ProviderAPIKey   string
	ProviderModel    string
	DebuggerURL      string // Chrome DevTools control endpoint for the monitored surface
	DBPath           string
	TrackInterval    time.Duration
	VisionInterval   time.Duration
	DispatchInterval time.Duration
	FrameWidth       int
	FrameHeight      int
	FrameQuality     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8090"),
		BackendURL:       getEnv("BACKEND_URL", "http://localhost:8080"),
		UserID:           getEnv("USER_ID", "default"),
		ProviderAPIKey:   getEnv("GEMINI_API_KEY", ""),
		ProviderModel:    getEnv("VISION_MODEL", "gemini-2.0-flash"),
		DebuggerURL:      getEnv("DEBUGGER_URL", "ws://127.0.0.1:9222"),
		DBPath:           getEnv("DB_PATH", "./data/watcher.db"),
		TrackInterval:    time.Duration(getEnvInt("TRACK_INTERVAL_MS", 2000)) * time.Millisecond,
		VisionInterval:   time.Duration(getEnvInt("VISION_INTERVAL_MS", 5000)) * time.Millisecond,
		DispatchInterval: time.Duration(getEnvInt("DISPATCH_INTERVAL_MS", 3000)) * time.Millisecond,
		FrameWidth:       getEnvInt("FRAME_WIDTH", 1280),
		FrameHeight:      getEnvInt("FRAME_HEIGHT", 720),
		FrameQuality:     getEnvInt("FRAME_QUALITY", 70),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.TrackInterval <= 0 {
		return fmt.Errorf("TRACK_INTERVAL_MS must be > 0")
	}
	if c.VisionInterval <= 0 {
		return fmt.Errorf("VISION_INTERVAL_MS must be > 0")
	}
	if c.DispatchInterval <= 0 {
		return fmt.Errorf("DISPATCH_INTERVAL_MS must be > 0")
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be > 0")
	}
	if c.FrameQuality < 1 || c.FrameQuality > 100 {
		return fmt.Errorf("FRAME_QUALITY must be between 1 and 100")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
