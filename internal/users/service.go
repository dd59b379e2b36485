// Package users implements the user registry: a first-contact upsert
// over Telegram identities.
package users

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/models"
	"github.com/rootzsu/servicebot/internal/storage"
)

// ErrUnknownUser is returned when a username has never talked to the bot.
var ErrUnknownUser = errors.New("users: unknown user")

// ErrAlreadyRegistered is returned when a dashboard password already exists.
var ErrAlreadyRegistered = errors.New("users: already registered")

// ErrBadCredentials is returned on a failed dashboard login.
var ErrBadCredentials = errors.New("users: bad credentials")

// Store is the storage surface the registry needs.
type Store interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	Create(ctx context.Context, u models.User) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	List(ctx context.Context) ([]models.User, error)
}

// Service registers users on first contact.
type Service struct {
	store Store
}

// NewService constructs the user registry service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// EnsureUser inserts a user row on first contact and returns the stored
// record. Repeat contacts return the existing row unchanged: name and
// username drift is intentionally not tracked.
func (s *Service) EnsureUser(ctx context.Context, id int64, username, firstName string) (models.User, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, err
	}

	u := models.User{ID: id, FirstName: firstName}
	if username != "" {
		u.Username = &username
	}
	if err := s.store.Create(ctx, u); err != nil {
		return models.User{}, err
	}
	logger.Info(ctx, "service.users", "user.registered",
		slog.Int64("user_id", id),
		slog.String("username", username),
	)
	return u, nil
}

// Get returns a user by Telegram ID.
func (s *Service) Get(ctx context.Context, id int64) (models.User, error) {
	return s.store.GetByID(ctx, id)
}

// List returns every registered user.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.store.List(ctx)
}

// Register sets a dashboard password for a user the bot already knows.
// Unknown usernames are rejected: the bot conversation is the only way
// to create an account.
func (s *Service) Register(ctx context.Context, username, password string) error {
	u, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return ErrUnknownUser
	}
	if err != nil {
		return err
	}
	if u.PasswordHash != nil && *u.PasswordHash != "" {
		return ErrAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.SetPasswordHash(ctx, u.ID, string(hash)); err != nil {
		return err
	}
	logger.Info(ctx, "service.users", "user.password_set",
		slog.Int64("user_id", u.ID),
	)
	return nil
}

// Authenticate verifies a dashboard login against the stored hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	u, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, ErrBadCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if u.PasswordHash == nil || *u.PasswordHash == "" {
		return models.User{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrBadCredentials
	}
	return u, nil
}
