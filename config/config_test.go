package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("unexpected defaults: port=%s driver=%s", cfg.Port, cfg.StoreDriver)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("token ttl = %s, want 24h", cfg.TokenTTL)
	}
	if !cfg.AutoMigrate || cfg.AutoComplete {
		t.Fatalf("unexpected flags: autoMigrate=%v autoComplete=%v", cfg.AutoMigrate, cfg.AutoComplete)
	}
	if cfg.Addr() != "localhost:8080" {
		t.Fatalf("addr = %s", cfg.Addr())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTO_COMPLETE", "true")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" || cfg.StoreDriver != StoreDriverMemory || !cfg.AutoComplete {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if cfg.TokenTTL != 90*time.Minute || cfg.RedisDB != 3 {
		t.Fatalf("unexpected ttl=%s redisDB=%d", cfg.TokenTTL, cfg.RedisDB)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestDatabaseURLEscapesCredentials(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5432", DBUser: "mcq", DBPassword: "p@ss word", DBName: "mcq"}
	got := cfg.DatabaseURL()
	if !strings.HasPrefix(got, "postgres://mcq:p%40ss%20word@db:5432/mcq") {
		t.Fatalf("database url = %s", got)
	}
	if !strings.Contains(cfg.DSN(), "dbname=mcq") {
		t.Fatalf("dsn = %s", cfg.DSN())
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MCQ_TEST_KEEP=file\nMCQ_TEST_NEW=file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("MCQ_TEST_KEEP", "env")
	t.Cleanup(func() { os.Unsetenv("MCQ_TEST_NEW") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("MCQ_TEST_KEEP"); got != "env" {
		t.Fatalf("MCQ_TEST_KEEP = %s, want env", got)
	}
	if got := os.Getenv("MCQ_TEST_NEW"); got != "file" {
		t.Fatalf("MCQ_TEST_NEW = %s, want file", got)
	}
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}
