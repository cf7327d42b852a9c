package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/contaflow/proposal-app/internal/draft"
	"github.com/contaflow/proposal-app/internal/wizard"
)

type Config struct {
	Port        string
	DatabaseDSN string
	Env         string

	DraftTTL       time.Duration
	SessionIdleAge time.Duration

	AutoSaveBaseDelay   time.Duration
	AutoSaveMaxAttempts int

	// Debounce windows; services carries the heaviest payload, so it waits longest.
	DebounceDefault  time.Duration
	DebounceServices time.Duration
	DebounceReview   time.Duration
}

// Load loads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (if loaded by caller) > default.
func Load() Config {
	return Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseDSN:         getEnv("DATABASE_DSN", "file:proposals.db"),
		Env:                 getEnv("APP_ENV", "development"),
		DraftTTL:            parseDuration("DRAFT_TTL", 24*time.Hour),
		SessionIdleAge:      parseDuration("SESSION_IDLE_AGE", time.Hour),
		AutoSaveBaseDelay:   parseDuration("AUTOSAVE_BASE_DELAY", 2*time.Second),
		AutoSaveMaxAttempts: parseInt("AUTOSAVE_MAX_ATTEMPTS", 3),
		DebounceDefault:     parseDuration("AUTOSAVE_DEBOUNCE", time.Second),
		DebounceServices:    parseDuration("AUTOSAVE_DEBOUNCE_SERVICES", 2*time.Second),
		DebounceReview:      parseDuration("AUTOSAVE_DEBOUNCE_REVIEW", 1500*time.Millisecond),
	}
}

// Autosave projects the config onto the draft controller's settings.
func (c Config) Autosave() draft.Config {
	return draft.Config{
		BaseDelay:     c.AutoSaveBaseDelay,
		MaxAttempts:   c.AutoSaveMaxAttempts,
		DefaultWindow: c.DebounceDefault,
		Windows: map[int]time.Duration{
			int(wizard.StepServices): c.DebounceServices,
			int(wizard.StepReview):   c.DebounceReview,
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid integer for %s: %s", key, v)
			return def
		}
		return n
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Printf("invalid duration for %s: %s", key, v)
			return def
		}
		return d
	}
	return def
}
