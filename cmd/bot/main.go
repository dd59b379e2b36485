// Command bot runs the Telegram commerce bot: catalog browsing, the
// order conversation, payment proof review and the admin chat relay.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/rootzsu/servicebot/internal/bootstrap"
	"github.com/rootzsu/servicebot/internal/bot"
	"github.com/rootzsu/servicebot/internal/catalog"
	"github.com/rootzsu/servicebot/internal/config"
	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/orders"
	"github.com/rootzsu/servicebot/internal/storage"
	tg "github.com/rootzsu/servicebot/internal/telegram"
	"github.com/rootzsu/servicebot/internal/telegram/state"
	"github.com/rootzsu/servicebot/internal/users"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("bot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	log.Printf("loading config: %s", cfgPath)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
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

	userSvc := users.NewService(userRepo)
	catalogSvc := catalog.NewService(serviceRepo)
	orderSvc := orders.NewService(userRepo, serviceRepo, orderRepo)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.SeedDefaults() {
		if err := catalogSvc.Seed(ctx); err != nil {
			return err
		}
	}

	app := bot.NewApp(cfg, userSvc, catalogSvc, orderSvc, buildSessions(cfg))
	reg := tg.NewRegistry()
	app.Register(reg)

	return tg.RunTelegram(ctx, app.RunOptions(reg))
}

func buildSessions(cfg *config.Config) state.Manager {
	if cfg.Sessions.Backend == config.SessionsRedis {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Sessions.RedisAddr,
			DB:   cfg.Sessions.RedisDB,
		})
		return state.NewRedisManager(client)
	}
	return state.NewMemoryManager()
}
