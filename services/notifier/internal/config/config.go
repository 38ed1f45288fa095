package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultCheckInterval = 30 * time.Minute
	defaultLookback      = 30 * time.Minute
	defaultRetention     = 2 * time.Hour
)

// Config holds runtime configuration for the alert notifier.
type Config struct {
	DatabaseURL    string
	TelegramToken  string
	TelegramChatID string
	CheckInterval  time.Duration
	Lookback       time.Duration
	Retention      time.Duration
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		CheckInterval: defaultCheckInterval,
		Lookback:      defaultLookback,
		Retention:     defaultRetention,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN"))
	cfg.TelegramChatID = strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID"))

	if v := strings.TrimSpace(os.Getenv("CHECK_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid CHECK_INTERVAL: %w", err)
		}
		cfg.CheckInterval = d
	}

	if v := strings.TrimSpace(os.Getenv("ALERT_LOOKBACK")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid ALERT_LOOKBACK: %w", err)
		}
		cfg.Lookback = d
	}

	if v := strings.TrimSpace(os.Getenv("ALERT_RETENTION")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid ALERT_RETENTION: %w", err)
		}
		cfg.Retention = d
	}

	return cfg, nil
}
