package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Store
	DBPath        string
	DBOpenTimeout time.Duration
	DBOpenRetries int
	DBOpenBackoff time.Duration
	SeedDemoData  bool

	// Jobs
	RunJobsOnStart bool
	JobsInterval   time.Duration // 0 disables the timer
	JobsCooldown   time.Duration

	// Cache
	ScheduleCacheTTL time.Duration

	// Observability
	OTLPEndpoint    string
	MetricsTextfile string // budgetctl writes its metrics here when set
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBPath:        getEnv("DB_PATH", "budget.db"),
		DBOpenTimeout: getEnvDuration("DB_OPEN_TIMEOUT", 5*time.Second),
		DBOpenRetries: getEnvInt("DB_OPEN_RETRIES", 3),
		DBOpenBackoff: getEnvDuration("DB_OPEN_BACKOFF", 500*time.Millisecond),
		SeedDemoData:  getEnvBool("SEED_DEMO_DATA", true),

		RunJobsOnStart: getEnvBool("RUN_JOBS_ON_START", true),
		JobsInterval:   getEnvDuration("JOBS_INTERVAL", time.Hour),
		JobsCooldown:   getEnvDuration("JOBS_COOLDOWN", 5*time.Minute),

		ScheduleCacheTTL: getEnvDuration("SCHEDULE_CACHE_TTL", 10*time.Minute),

		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
