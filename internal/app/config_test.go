package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "promptchain.yaml")
	yamlDoc := `
log_mode: production
db:
  driver: postgres
  postgres:
    host: db.internal
    name: prompts
tx:
  timeout: 2s
  max_attempts: 5
redis:
  addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TX_MAX_ATTEMPTS", "2")
	t.Setenv("POSTGRES_PORT", "6543")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogMode != "production" || cfg.DB.Driver != "postgres" || cfg.DB.Postgres.Host != "db.internal" {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.Tx.Timeout != 2*time.Second {
		t.Fatalf("tx timeout: %v", cfg.Tx.Timeout)
	}
	if cfg.Tx.MaxAttempts != 2 || cfg.DB.Postgres.Port != "6543" {
		t.Fatalf("env should override yaml: %+v", cfg.Tx)
	}
	if cfg.DB.Postgres.User != "postgres" || cfg.Tx.RetryBaseDelay != 25*time.Millisecond {
		t.Fatalf("defaults should survive partial yaml: %+v", cfg)
	}
	if cfg.Redis.Channel != "promptchain.activity" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis: %+v", cfg.Redis)
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SQLITE_PATH=from-dotenv.db\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SQLITE_PATH", "")
	os.Unsetenv("SQLITE_PATH")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DB.SQLitePath != "from-dotenv.db" {
		t.Fatalf("dotenv not applied: %q", cfg.DB.SQLitePath)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown driver":   func(c *Config) { c.DB.Driver = "mysql" },
		"no sqlite path":   func(c *Config) { c.DB.SQLitePath = " " },
		"no pg host":       func(c *Config) { c.DB.Driver = "postgres"; c.DB.Postgres.Host = "" },
		"zero attempts":    func(c *Config) { c.Tx.MaxAttempts = 0 },
		"negative timeout": func(c *Config) { c.Tx.Timeout = -time.Second },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("tx: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
}
