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

// Config holds all configuration for the API server
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// HTTP Configuration
	HTTP HTTPConfig

	// Token Configuration
	Auth AuthConfig

	// Media Configuration
	Media MediaConfig

	// Logging Configuration
	Logging LoggingConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// HTTPConfig holds listener configuration
type HTTPConfig struct {
	Port        string
	CORSOrigins []string
	// PublicURL is where links in outgoing emails point to
	PublicURL string
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// ActionTokenTTL bounds activation and password reset links
	ActionTokenTTL time.Duration
}

// MediaConfig holds the streaming media layout
type MediaConfig struct {
	Dir      string
	SeedFile string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	accessTTL, err := durationEnv("ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := durationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	actionTTL, err := durationEnv("ACTION_TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Database: DatabaseConfig{
			URL: getenv("DATABASE_URL", "vidflow.sqlite"),
		},
		HTTP: HTTPConfig{
			Port:        getenv("PORT", "8000"),
			CORSOrigins: splitList(getenv("CORS_ORIGINS", "http://localhost:5173")),
			PublicURL:   strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:5173"), "/"),
		},
		Auth: AuthConfig{
			JWTSecret:      secret,
			AccessTTL:      accessTTL,
			RefreshTTL:     refreshTTL,
			ActionTokenTTL: actionTTL,
		},
		Media: MediaConfig{
			Dir:      getenv("MEDIA_DIR", "media"),
			SeedFile: os.Getenv("SEED_FILE"),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationEnv accepts Go durations ("15m") or plain seconds ("900")
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
