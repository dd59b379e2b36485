// Package bootstrap brings up the infrastructure both binaries share:
// logging, the database pool and schema migrations, in that order.
package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rootzsu/servicebot/internal/config"
	"github.com/rootzsu/servicebot/internal/database"
	"github.com/rootzsu/servicebot/internal/logger"
)

// Options carry the loaded configuration into the bootstrap sequence.
type Options struct {
	Config *config.Config
}

// Result exposes infrastructure handles owned by the caller.
type Result struct {
	DB *sqlx.DB
}

// DatabaseConfig converts the parsed settings into the database
// package's own type. The config package stays leaf-level, so the
// conversion happens here where both packages are visible.
func DatabaseConfig(cfg config.DatabaseConfig) database.Config {
	return database.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.Password,
		Name:           cfg.Name,
		SSLMode:        cfg.SSLMode,
		MaxConnections: cfg.MaxConnections,
	}
}

// Run initializes the logger, connects to Postgres and applies
// migrations. On migration failure the pool is closed before return.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	if err := logger.InitLogger(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	dbCfg := DatabaseConfig(opts.Config.Database)
	db, err := database.Connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	if err := database.RunMigrations(dbCfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	return &Result{DB: db}, nil
}
