package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Upstream risk service
	Upstream UpstreamConfig

	// Live stream
	Stream StreamConfig

	// Redis (shared rate limiter only)
	Redis RedisConfig

	// Scheduled refresh
	RefreshSchedule string
	StaleAfter      time.Duration
	ThresholdsFile  string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Monitoring
	MetricsEnabled bool
}

// UpstreamConfig describes the batch history endpoint
type UpstreamConfig struct {
	BaseURL            string
	Timeout            time.Duration
	MaxAttempts        int
	InitialDelay       time.Duration
	MaxDelay           time.Duration
	RateLimit          int // requests per second, 0 = unlimited
	DefaultHistoryDays int
}

// StreamConfig describes the live metrics websocket
type StreamConfig struct {
	URL            string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	Enabled        bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Upstream: UpstreamConfig{
			BaseURL:            getEnv("RISK_API_BASE_URL", "http://localhost:8000/api/v2"),
			Timeout:            getEnvAsDuration("HTTP_TIMEOUT", "30s"),
			MaxAttempts:        getEnvAsInt("FETCH_MAX_ATTEMPTS", 3),
			InitialDelay:       getEnvAsDuration("FETCH_INITIAL_DELAY", "1s"),
			MaxDelay:           getEnvAsDuration("FETCH_MAX_DELAY", "10s"),
			RateLimit:          getEnvAsInt("FETCH_RATE_LIMIT", 5),
			DefaultHistoryDays: getEnvAsInt("DEFAULT_HISTORY_DAYS", 180),
		},

		Stream: StreamConfig{
			URL:            getEnv("RISK_STREAM_URL", "ws://localhost:8000/ws/risk"),
			ReconnectDelay: getEnvAsDuration("STREAM_RECONNECT_DELAY", "5s"),
			PingInterval:   getEnvAsDuration("STREAM_PING_INTERVAL", "30s"),
			Enabled:        getEnvAsBool("STREAM_ENABLED", true),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 */15 * * * *"),
		StaleAfter:      getEnvAsDuration("STALE_AFTER", "1h"),
		ThresholdsFile:  getEnv("THRESHOLDS_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("RISK_API_BASE_URL must be an absolute http(s) URL")
	}

	if c.Stream.Enabled {
		s, err := url.Parse(c.Stream.URL)
		if err != nil || (s.Scheme != "ws" && s.Scheme != "wss") || s.Host == "" {
			return fmt.Errorf("RISK_STREAM_URL must be an absolute ws(s) URL")
		}
	}

	if c.Upstream.MaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1")
	}

	if c.Upstream.DefaultHistoryDays <= 0 {
		return fmt.Errorf("DEFAULT_HISTORY_DAYS must be positive")
	}

	if c.StaleAfter <= 0 {
		return fmt.Errorf("STALE_AFTER must be positive")
	}

	if c.Stream.ReconnectDelay <= 0 {
		return fmt.Errorf("STREAM_RECONNECT_DELAY must be positive")
	}

	return nil
}

// envFile overrides the .env search when set
var envFile string

// SetEnvFile makes the next Load read path instead of searching for .env
func SetEnvFile(path string) {
	envFile = path
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	if envFile != "" {
		_ = godotenv.Load(envFile)
		return
	}

	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
