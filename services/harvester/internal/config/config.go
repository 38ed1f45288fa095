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

const (
	defaultBaseURL        = "https://api.openaq.org/v3"
	defaultBBox           = "-0.51,51.28,0.33,51.69"
	defaultMaxConcurrent  = 4
	defaultPageLimit      = 1000
	defaultPageDelay      = 500 * time.Millisecond
	defaultCooldown       = 65 * time.Second
	defaultMaxCooldowns   = 5
	defaultRequestTimeout = 30 * time.Second
	defaultRatePerSec     = 8.0
	defaultSourceTag      = "historical"
)

// pollutantIDs maps pollutant codes to the provider's parameter ids.
var pollutantIDs = map[string]int{
	"pm25": 2,
	"pm10": 1,
	"no2":  5,
	"o3":   3,
}

// Config holds runtime configuration for the harvester service.
type Config struct {
	APIKey         string
	BaseURL        string
	BBox           string
	SinkURL        string
	SinkAPIKey     string
	Pollutants     map[string]int
	Year           int
	MaxConcurrent  int
	PageLimit      int
	PageDelay      time.Duration
	Cooldown       time.Duration
	MaxCooldowns   int
	RequestTimeout time.Duration
	RatePerSec     float64
	SourceTag      string
	Schedule       string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		BaseURL:        defaultBaseURL,
		BBox:           defaultBBox,
		Year:           time.Now().UTC().Year(),
		MaxConcurrent:  defaultMaxConcurrent,
		PageLimit:      defaultPageLimit,
		PageDelay:      defaultPageDelay,
		Cooldown:       defaultCooldown,
		MaxCooldowns:   defaultMaxCooldowns,
		RequestTimeout: defaultRequestTimeout,
		RatePerSec:     defaultRatePerSec,
		SourceTag:      defaultSourceTag,
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAQ_API_KEY"))
	if cfg.APIKey == "" {
		return cfg, errors.New("OPENAQ_API_KEY is required")
	}

	cfg.SinkURL = strings.TrimSpace(os.Getenv("SINK_URL"))
	if cfg.SinkURL == "" {
		return cfg, errors.New("SINK_URL is required")
	}

	cfg.SinkAPIKey = strings.TrimSpace(os.Getenv("SINK_API_KEY"))
	if cfg.SinkAPIKey == "" {
		return cfg, errors.New("SINK_API_KEY is required")
	}

	if v := strings.TrimSpace(os.Getenv("OPENAQ_BASE_URL")); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("BBOX")); v != "" {
		cfg.BBox = v
	}

	pollutants, err := parsePollutants(os.Getenv("POLLUTANTS"))
	if err != nil {
		return cfg, err
	}
	cfg.Pollutants = pollutants

	if v := strings.TrimSpace(os.Getenv("YEAR")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year < 2000 {
			return cfg, fmt.Errorf("invalid YEAR: %s", v)
		}
		cfg.Year = year
	}

	if v := strings.TrimSpace(os.Getenv("MAX_CONCURRENT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("invalid MAX_CONCURRENT: %s", v)
		}
		cfg.MaxConcurrent = n
	}

	if v := strings.TrimSpace(os.Getenv("PAGE_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("invalid PAGE_LIMIT: %s", v)
		}
		cfg.PageLimit = n
	}

	if v := strings.TrimSpace(os.Getenv("PAGE_DELAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PAGE_DELAY: %w", err)
		}
		cfg.PageDelay = d
	}

	if v := strings.TrimSpace(os.Getenv("COOLDOWN")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid COOLDOWN: %w", err)
		}
		cfg.Cooldown = d
	}

	if v := strings.TrimSpace(os.Getenv("MAX_COOLDOWNS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("invalid MAX_COOLDOWNS: %s", v)
		}
		cfg.MaxCooldowns = n
	}

	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("RATE_PER_SEC")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return cfg, fmt.Errorf("invalid RATE_PER_SEC: %s", v)
		}
		cfg.RatePerSec = f
	}

	if v := strings.TrimSpace(os.Getenv("SOURCE_TAG")); v != "" {
		cfg.SourceTag = v
	}

	cfg.Schedule = strings.TrimSpace(os.Getenv("HARVEST_SCHEDULE"))

	return cfg, nil
}

// parsePollutants resolves a comma-separated pollutant list against the
// known provider parameter ids. Empty means all known pollutants.
func parsePollutants(raw string) (map[string]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		out := make(map[string]int, len(pollutantIDs))
		for k, v := range pollutantIDs {
			out[k] = v
		}
		return out, nil
	}

	out := make(map[string]int)
	for _, tok := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(tok))
		if name == "" {
			continue
		}
		id, ok := pollutantIDs[name]
		if !ok {
			return nil, fmt.Errorf("unknown pollutant %q in POLLUTANTS", name)
		}
		out[name] = id
	}
	if len(out) == 0 {
		return nil, errors.New("POLLUTANTS resolved to an empty set")
	}
	return out, nil
}
