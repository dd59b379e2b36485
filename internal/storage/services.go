package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rootzsu/servicebot/internal/models"
)

// ServiceRepo persists the service catalog.
type ServiceRepo struct {
	db *sqlx.DB
}

// NewServiceRepo constructs a ServiceRepo over the shared connection pool.
func NewServiceRepo(db *sqlx.DB) *ServiceRepo {
	return &ServiceRepo{db: db}
}

// List returns the full catalog ordered by id.
func (r *ServiceRepo) List(ctx context.Context) ([]models.Service, error) {
	var out []models.Service
	err := r.db.SelectContext(ctx, &out,
		`SELECT service_id, name, description, price_usd, price_btc, price_stars
		 FROM services ORDER BY service_id`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}

// GetByID returns a single service.
func (r *ServiceRepo) GetByID(ctx context.Context, id int64) (models.Service, error) {
	var s models.Service
	err := r.db.GetContext(ctx, &s,
		`SELECT service_id, name, description, price_usd, price_btc, price_stars
		 FROM services WHERE service_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Service{}, ErrServiceNotFound
	}
	if err != nil {
		return models.Service{}, fmt.Errorf("get service %d: %w", id, err)
	}
	return s, nil
}

// Count returns the number of catalog entries.
func (r *ServiceRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM services`); err != nil {
		return 0, fmt.Errorf("count services: %w", err)
	}
	return n, nil
}

// InsertBatch inserts catalog entries; used by the idempotent seeder.
func (r *ServiceRepo) InsertBatch(ctx context.Context, services []models.Service) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert services: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range services {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO services (name, description, price_usd, price_btc, price_stars)
			 VALUES ($1, $2, $3, $4, $5)`,
			s.Name, s.Description, s.PriceUSD, s.PriceBTC, s.PriceStars)
		if err != nil {
			return fmt.Errorf("insert service %q: %w", s.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert services: %w", err)
	}
	return nil
}

// Update overwrites an editable service record (dashboard edit path).
func (r *ServiceRepo) Update(ctx context.Context, s models.Service) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE services SET name = $1, description = $2, price_usd = $3, price_btc = $4, price_stars = $5
		 WHERE service_id = $6`,
		s.Name, s.Description, s.PriceUSD, s.PriceBTC, s.PriceStars, s.ID)
	if err != nil {
		return fmt.Errorf("update service %d: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrServiceNotFound
	}
	return nil
}
