package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/budget-tracker-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "DB_PATH", "DB_OPEN_TIMEOUT", "SEED_DEMO_DATA", "RUN_JOBS_ON_START", "SCHEDULE_CACHE_TTL", "OTEL_EXPORTER_OTLP_ENDPOINT", "METRICS_TEXTFILE", "DB_OPEN_RETRIES", "DB_OPEN_BACKOFF", "JOBS_INTERVAL", "JOBS_COOLDOWN"} {
		t.Setenv(key, "")
	}

	cfg := config.Load()
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.DBPath != "budget.db" {
		t.Errorf("expected budget.db, got %s", cfg.DBPath)
	}
	if cfg.DBOpenTimeout != 5*time.Second {
		t.Errorf("expected 5s open timeout, got %v", cfg.DBOpenTimeout)
	}
	if !cfg.SeedDemoData || !cfg.RunJobsOnStart {
		t.Errorf("expected seeding and startup jobs on by default, got %+v", cfg)
	}
	if cfg.JobsInterval != time.Hour || cfg.DBOpenRetries != 3 {
		t.Errorf("unexpected job/open defaults %+v", cfg)
	}
	if cfg.OTLPEndpoint != "" {
		t.Errorf("expected tracing disabled by default, got %q", cfg.OTLPEndpoint)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("DB_OPEN_TIMEOUT", "250ms")
	t.Setenv("SEED_DEMO_DATA", "false")
	t.Setenv("SCHEDULE_CACHE_TTL", "not-a-duration")
	t.Setenv("JOBS_INTERVAL", "0s")

	cfg := config.Load()
	if cfg.Port != 9090 || cfg.DBPath != "/tmp/x.db" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.DBOpenTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.DBOpenTimeout)
	}
	if cfg.SeedDemoData {
		t.Error("expected seeding disabled")
	}
	if cfg.JobsInterval != 0 {
		t.Errorf("expected the job timer disabled, got %v", cfg.JobsInterval)
	}
	if cfg.ScheduleCacheTTL != 10*time.Minute {
		t.Errorf("invalid values fall back to the default, got %v", cfg.ScheduleCacheTTL)
	}
}

func TestLoadDotEnv_EnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LOG_LEVEL=debug\nDB_PATH=\"from-file.db\"\n"), 0o600); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DB_PATH", "")
	os.Unsetenv("DB_PATH")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := os.Getenv("LOG_LEVEL"); got != "warn" {
		t.Errorf("environment must take precedence, got %s", got)
	}
	if got := os.Getenv("DB_PATH"); got != "from-file.db" {
		t.Errorf("expected value from file, got %s", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
