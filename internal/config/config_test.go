package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  admin_ids: [10, 20]
database:
  host: "db.local"
  port: "5433"
  user: "bot"
  password: "secret"
  name: "servicebot"
  sslmode: "disable"
  max_connections: 12
sessions:
  backend: "redis"
  redis_addr: "127.0.0.1:6379"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesDatabaseSection(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	db := cfg.Database
	if db.Host != "db.local" || db.Port != "5433" || db.Name != "servicebot" {
		t.Fatalf("database section = %+v", db)
	}
	if db.MaxConnections != 12 {
		t.Errorf("max_connections = %d", db.MaxConnections)
	}
	if cfg.Sessions.Backend != SessionsRedis {
		t.Errorf("sessions backend = %q", cfg.Sessions.Backend)
	}
}

func TestNormalizeDefaultsRunModeAndSessions(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "123:abc"}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Sessions.Backend != SessionsMemory {
		t.Errorf("sessions backend = %q", cfg.Sessions.Backend)
	}
}

func TestNormalizeRejectsRedisWithoutAddr(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Sessions: SessionsConfig{Backend: SessionsRedis},
	}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for redis backend without redis_addr")
	}
}
