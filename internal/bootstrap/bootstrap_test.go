package bootstrap

import (
	"testing"

	"github.com/rootzsu/servicebot/internal/config"
)

func TestDatabaseConfigConversion(t *testing.T) {
	src := config.DatabaseConfig{
		Host:           "db.local",
		Port:           "5433",
		User:           "bot",
		Password:       "secret",
		Name:           "servicebot",
		SSLMode:        "disable",
		MaxConnections: 12,
	}

	got := DatabaseConfig(src)
	if got.Host != src.Host || got.Port != src.Port || got.User != src.User {
		t.Fatalf("connection fields = %+v", got)
	}
	if got.Password != src.Password || got.Name != src.Name || got.SSLMode != src.SSLMode {
		t.Fatalf("credential fields = %+v", got)
	}
	if got.MaxConnections != src.MaxConnections {
		t.Errorf("max_connections = %d", got.MaxConnections)
	}
	if want := "user=bot password=secret host=db.local port=5433 dbname=servicebot sslmode=disable"; got.DSN() != want {
		t.Errorf("dsn = %q", got.DSN())
	}
}
