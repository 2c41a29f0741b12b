package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ErrConfigurationMissing is returned when credentials required before any
// network call are absent.
var ErrConfigurationMissing = errors.New("configuration missing")

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
		LogLevel     string
	}

	Gemini struct {
		APIKey          string
		TextModel       string
		ImageModel      string
		Temperature     float64
		ListTemperature float64
		Timeout         time.Duration
		ImageTimeout    time.Duration
	}

	Sources struct {
		GBIFURL          string
		INaturalistURL   string
		XenoCantoURL     string
		WikipediaURL     string
		OpenMeteoURL     string
		UserAgent        string
		Timeout          time.Duration
		CommunityTimeout time.Duration
	}

	Scheduler struct {
		FeaturedSpec string
	}

	Cache struct {
		Duration time.Duration
		MaxSize  int
	}

	CircuitBreaker struct {
		Threshold int
		Timeout   time.Duration
	}

	Retry struct {
		MaxRetries int
		Delay      time.Duration
		Multiplier float64
	}

	Store struct {
		Path string
	}
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "90s"))
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", "info")

	// Generative source. API_KEY is the legacy name.
	cfg.Gemini.APIKey = getEnv("GEMINI_API_KEY", os.Getenv("API_KEY"))
	cfg.Gemini.TextModel = getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash")
	cfg.Gemini.ImageModel = getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image")
	cfg.Gemini.Temperature = parseFloat(getEnv("GEMINI_TEMPERATURE", "0.3"))
	cfg.Gemini.ListTemperature = parseFloat(getEnv("GEMINI_LIST_TEMPERATURE", "0.5"))
	cfg.Gemini.Timeout = parseDuration(getEnv("GEMINI_TIMEOUT", "30s"))
	cfg.Gemini.ImageTimeout = parseDuration(getEnv("GEMINI_IMAGE_TIMEOUT", "45s"))

	// Public data sources
	cfg.Sources.GBIFURL = getEnv("GBIF_URL", "https://api.gbif.org/v1")
	cfg.Sources.INaturalistURL = getEnv("INATURALIST_URL", "https://api.inaturalist.org/v1")
	cfg.Sources.XenoCantoURL = getEnv("XENO_CANTO_URL", "https://xeno-canto.org/api/2/recordings")
	cfg.Sources.WikipediaURL = getEnv("WIKIPEDIA_URL", "https://en.wikipedia.org/w/api.php")
	cfg.Sources.OpenMeteoURL = getEnv("OPENMETEO_URL", "https://api.open-meteo.com/v1")
	cfg.Sources.UserAgent = getEnv("SOURCE_USER_AGENT", "species-archive/1.0")
	cfg.Sources.Timeout = parseDuration(getEnv("SOURCE_TIMEOUT", "5s"))
	cfg.Sources.CommunityTimeout = parseDuration(getEnv("COMMUNITY_SOURCE_TIMEOUT", "6s"))

	// Scheduler configuration
	cfg.Scheduler.FeaturedSpec = getEnv("FEATURED_REFRESH", "@every 30m")

	// Cache configuration
	cfg.Cache.Duration = parseDuration(getEnv("CACHE_DURATION", "10m"))
	cfg.Cache.MaxSize = parseInt(getEnv("MAX_CACHE_SIZE", "500"))

	// Circuit breaker configuration
	cfg.CircuitBreaker.Threshold = parseInt(getEnv("CIRCUIT_BREAKER_THRESHOLD", "3"))
	cfg.CircuitBreaker.Timeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))

	// Retry configuration. Retries share the per-call deadline.
	cfg.Retry.MaxRetries = parseInt(getEnv("MAX_RETRIES", "1"))
	cfg.Retry.Delay = parseDuration(getEnv("RETRY_DELAY", "300ms"))
	cfg.Retry.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))

	// Favorites and history
	cfg.Store.Path = getEnv("STORE_PATH", "./data/species-archive.db")

	return cfg, nil
}

// Validate fails fast on settings that would make every aggregation fail.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY not set", ErrConfigurationMissing)
	}
	if c.Gemini.Timeout <= 0 || c.Gemini.ImageTimeout <= 0 {
		return fmt.Errorf("gemini timeouts must be positive")
	}
	if c.Sources.Timeout <= 0 || c.Sources.CommunityTimeout <= 0 {
		return fmt.Errorf("source timeouts must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
