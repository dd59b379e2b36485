// Package catalog exposes the service catalog and its idempotent
// default seeding.
package catalog

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/models"
)

// Store is the storage surface the catalog needs.
type Store interface {
	List(ctx context.Context) ([]models.Service, error)
	GetByID(ctx context.Context, id int64) (models.Service, error)
	Count(ctx context.Context) (int, error)
	InsertBatch(ctx context.Context, services []models.Service) error
	Update(ctx context.Context, svc models.Service) error
}

// Service provides read access to the catalog plus bootstrap seeding.
type Service struct {
	store Store
}

// NewService constructs the catalog service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// DefaultServices returns the fixed catalog inserted into an empty store.
func DefaultServices() []models.Service {
	price := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return []models.Service{
		{Name: "Разблокировка загрузчика", Description: "Для мобильных устройств", PriceUSD: price("15.0"), PriceBTC: price("0.00015"), PriceStars: 1000},
		{Name: "Установка root-прав", Description: "Для мобильных устройств", PriceUSD: price("3.0"), PriceBTC: price("0.00002478"), PriceStars: 100},
		{Name: "Прошивка устройств", Description: "Полная переустановка системы", PriceUSD: price("27.0"), PriceBTC: price("0.000223"), PriceStars: 2800},
		{Name: "Установка ОС (ПК)", Description: "Windows, Linux", PriceUSD: price("11.0"), PriceBTC: price("0.00009085"), PriceStars: 1280},
		{Name: "Восстановление файлов", Description: "С жестких дисков и SSD", PriceUSD: price("20.0"), PriceBTC: price("0.00016518"), PriceStars: 2200},
		{Name: "Реанимация флеш-накопителей", Description: "Восстановление USB-накопителей", PriceUSD: price("25.0"), PriceBTC: price("0.00042"), PriceStars: 2050},
	}
}

// Seed inserts the default catalog when the services table is empty.
// A populated table makes Seed a no-op, so repeated startups are safe.
func (s *Service) Seed(ctx context.Context) error {
	n, err := s.store.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Debug(ctx, "db.seed", "catalog.seed",
			slog.String("status", "skip"),
			slog.Int("count", n),
		)
		return nil
	}
	defaults := DefaultServices()
	if err := s.store.InsertBatch(ctx, defaults); err != nil {
		return err
	}
	logger.Info(ctx, "db.seed", "catalog.seed",
		slog.String("status", "ok"),
		slog.Int("count", len(defaults)),
	)
	return nil
}

// List returns the full catalog.
func (s *Service) List(ctx context.Context) ([]models.Service, error) {
	return s.store.List(ctx)
}

// Get returns a single catalog entry.
func (s *Service) Get(ctx context.Context, id int64) (models.Service, error) {
	return s.store.GetByID(ctx, id)
}

// Update overwrites a catalog entry. The storage sentinel is passed
// through so callers can distinguish a missing service.
func (s *Service) Update(ctx context.Context, svc models.Service) error {
	if err := s.store.Update(ctx, svc); err != nil {
		return err
	}
	logger.Info(ctx, "service.catalog", "service.updated",
		slog.Int64("service_id", svc.ID),
	)
	return nil
}
