// Command dashboard serves the companion web panel and supervises the
// bot child process.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rootzsu/servicebot/internal/bootstrap"
	"github.com/rootzsu/servicebot/internal/catalog"
	"github.com/rootzsu/servicebot/internal/config"
	"github.com/rootzsu/servicebot/internal/dashboard"
	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/orders"
	"github.com/rootzsu/servicebot/internal/storage"
	"github.com/rootzsu/servicebot/internal/supervisor"
	"github.com/rootzsu/servicebot/internal/users"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("dashboard: %v", err)
	}
}

func run() error {
	// Local overrides for admin credentials and secrets; missing file is fine.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	log.Printf("loading config: %s", cfgPath)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cfg.Dashboard.Listen == "" {
		return fmt.Errorf("dashboard.listen is required")
	}
	if cfg.Dashboard.Secret == "" {
		return fmt.Errorf("dashboard.secret is required")
	}
	if cfg.Dashboard.BotCommand == "" {
		return fmt.Errorf("dashboard.bot_command is required")
	}

	infra, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	defer infra.DB.Close()

	userRepo := storage.NewUserRepo(infra.DB)
	serviceRepo := storage.NewServiceRepo(infra.DB)
	orderRepo := storage.NewOrderRepo(infra.DB)

	sup := supervisor.New(cfg.Dashboard.BotCommand, cfg.Dashboard.BotArgs...)
	srv := dashboard.NewServer(cfg,
		users.NewService(userRepo),
		catalog.NewService(serviceRepo),
		orders.NewService(userRepo, serviceRepo, orderRepo),
		sup,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = srv.Run(ctx)

	// The bot child does not outlive the dashboard.
	if sup.Running() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if stopErr := sup.Stop(stopCtx); stopErr != nil {
			log.Printf("bot stop error: %v", stopErr)
		}
	}
	return err
}
