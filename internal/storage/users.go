package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rootzsu/servicebot/internal/models"
)

// UserRepo persists Telegram users.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo over the shared connection pool.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID returns the user with the given Telegram ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u,
		`SELECT user_id, username, first_name, password_hash FROM users WHERE user_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// GetByUsername returns the user with the given Telegram username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u,
		`SELECT user_id, username, first_name, password_hash FROM users WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user by username %q: %w", username, err)
	}
	return u, nil
}

// Create inserts a new user row. Conflicting inserts are treated as a
// no-op so repeated first contacts stay idempotent.
func (r *UserRepo) Create(ctx context.Context, u models.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, first_name) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		u.ID, u.Username, u.FirstName)
	if err != nil {
		return fmt.Errorf("create user %d: %w", u.ID, err)
	}
	return nil
}

// SetPasswordHash stores the web dashboard password hash for a user.
func (r *UserRepo) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE user_id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("set password hash for user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns all known users ordered by id.
func (r *UserRepo) List(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, username, first_name, password_hash FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}
