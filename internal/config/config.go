package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server  ServerConfig
	Feed    FeedConfig
	Ingest  IngestConfig
	Stops   StopsConfig
	DB      DatabaseConfig
	API     APIConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int `validate:"min=1,max=65535"`
}

type FeedConfig struct {
	URL     string        `validate:"required,url"`
	APIKey  string        `validate:"required"`
	Timeout time.Duration `validate:"gt=0"`
}

type IngestConfig struct {
	Enabled      bool
	PollInterval time.Duration
}

type StopsConfig struct {
	// Path to a GTFS stops.txt file. Empty uses the embedded table.
	Path string
}

type DatabaseConfig struct {
	URL string `validate:"required"`
}

type APIConfig struct {
	CacheTTL       time.Duration
	RateLimitRPS   int `validate:"gte=1"`
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

const DefaultAlertsURL = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/camsys%2Fsubway-alerts.json"

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Feed: FeedConfig{
			URL:     getEnv("MTA_ALERTS_URL", DefaultAlertsURL),
			APIKey:  os.Getenv("MTA_API_KEY"),
			Timeout: getEnvDuration("FEED_TIMEOUT", 10*time.Second),
		},
		Ingest: IngestConfig{
			Enabled:      getEnvBool("INGEST_ENABLED", true),
			PollInterval: getEnvDuration("POLL_INTERVAL", 2*time.Minute),
		},
		Stops: StopsConfig{
			Path: getEnv("STOPS_PATH", ""),
		},
		DB: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "./data/mta-alerts.db"),
		},
		API: APIConfig{
			CacheTTL:       getEnvDuration("CACHE_TTL", 5*time.Minute),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 5),
			AllowedOrigins: getEnvList("CORS_ORIGINS", []string{"https://www.willdiaz.me", "http://localhost:3000"}),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Feed.Timeout > time.Minute {
		return fmt.Errorf("feed timeout must not exceed 1 minute, got %s", c.Feed.Timeout)
	}
	if c.Ingest.PollInterval < 30*time.Second {
		return fmt.Errorf("poll interval must be at least 30 seconds")
	}
	// A request must finish before the next tick is due.
	if c.Feed.Timeout >= c.Ingest.PollInterval {
		return fmt.Errorf("feed timeout (%s) must be shorter than poll interval (%s)", c.Feed.Timeout, c.Ingest.PollInterval)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
