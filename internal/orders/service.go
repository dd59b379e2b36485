// Package orders implements the order ledger service: creation,
// proof attachment and the admin decision flow. Status mutations are
// guarded so the pending_payment -> pending_approval -> {approved,
// declined} chain can never be skipped or reversed.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rootzsu/servicebot/internal/logger"
	"github.com/rootzsu/servicebot/internal/models"
	"github.com/rootzsu/servicebot/internal/storage"
)

// ErrNotFound is returned when the referenced order does not exist.
var ErrNotFound = errors.New("orders: order not found")

// ErrIllegalTransition is returned when an operation would move an order
// out of sequence along the status chain.
var ErrIllegalTransition = errors.New("orders: illegal status transition")

// UserStore resolves order owners.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

// CatalogStore resolves ordered services.
type CatalogStore interface {
	GetByID(ctx context.Context, id int64) (models.Service, error)
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, userID, serviceID int64, method models.PaymentMethod) (models.Order, error)
	GetByID(ctx context.Context, id int64) (models.Order, error)
	GetByIDWithRefs(ctx context.Context, id int64) (models.OrderWithRefs, error)
	UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) error
	AttachProof(ctx context.Context, id int64, fileID string) error
	ListByUser(ctx context.Context, userID int64) ([]models.OrderWithRefs, error)
	ListAll(ctx context.Context) ([]models.OrderWithRefs, error)
}

// Service is the order ledger service.
type Service struct {
	users   UserStore
	catalog CatalogStore
	orders  OrderStore
}

// NewService constructs the order service.
func NewService(users UserStore, catalog CatalogStore, orders OrderStore) *Service {
	return &Service{users: users, catalog: catalog, orders: orders}
}

// Place creates an order for an existing user and service. Both
// references are verified before the row is written.
func (s *Service) Place(ctx context.Context, userID, serviceID int64, method models.PaymentMethod) (models.Order, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return models.Order{}, fmt.Errorf("place order: %w", err)
	}
	if _, err := s.catalog.GetByID(ctx, serviceID); err != nil {
		return models.Order{}, fmt.Errorf("place order: %w", err)
	}

	o, err := s.orders.Create(ctx, userID, serviceID, method)
	if err != nil {
		return models.Order{}, err
	}
	logger.Info(ctx, "service.orders", "order.created",
		slog.Int64("order_id", o.ID),
		slog.Int64("user_id", userID),
		slog.Int64("service_id", serviceID),
		slog.String("method", string(method)),
	)
	return o, nil
}

// ProofResult describes the order after a proof submission.
type ProofResult struct {
	Order       models.Order
	ServiceName string
}

// AttachProof records the uploaded proof handle and advances the order
// from pending_payment to pending_approval.
func (s *Service) AttachProof(ctx context.Context, orderID int64, fileID string) (ProofResult, error) {
	err := s.orders.AttachProof(ctx, orderID, fileID)
	switch {
	case errors.Is(err, storage.ErrOrderNotFound):
		return ProofResult{}, ErrNotFound
	case errors.Is(err, storage.ErrStatusConflict):
		return ProofResult{}, ErrIllegalTransition
	case err != nil:
		return ProofResult{}, err
	}

	withRefs, err := s.orders.GetByIDWithRefs(ctx, orderID)
	if err != nil {
		return ProofResult{}, err
	}
	logger.Info(ctx, "service.orders", "order.proof_attached",
		slog.Int64("order_id", orderID),
		slog.String("from_status", string(models.StatusPendingPayment)),
		slog.String("to_status", string(models.StatusPendingApproval)),
	)
	return ProofResult{Order: withRefs.Order, ServiceName: withRefs.ServiceName}, nil
}

// Decision describes the outcome of an admin decision.
type Decision struct {
	OrderID     int64
	UserID      int64
	ServiceName string
	Status      models.OrderStatus
}

// Decide moves a pending_approval order to its terminal status. A
// missing order returns ErrNotFound without mutating anything; an order
// in any other status returns ErrIllegalTransition.
func (s *Service) Decide(ctx context.Context, orderID int64, approve bool) (Decision, error) {
	target := models.StatusDeclined
	if approve {
		target = models.StatusApproved
	}

	err := s.orders.UpdateStatus(ctx, orderID, models.StatusPendingApproval, target)
	switch {
	case errors.Is(err, storage.ErrOrderNotFound):
		return Decision{}, ErrNotFound
	case errors.Is(err, storage.ErrStatusConflict):
		return Decision{}, ErrIllegalTransition
	case err != nil:
		return Decision{}, err
	}

	withRefs, err := s.orders.GetByIDWithRefs(ctx, orderID)
	if err != nil {
		return Decision{}, err
	}
	logger.Info(ctx, "service.orders", "order.decided",
		slog.Int64("order_id", orderID),
		slog.String("to_status", string(target)),
	)
	return Decision{
		OrderID:     orderID,
		UserID:      withRefs.UserID,
		ServiceName: withRefs.ServiceName,
		Status:      target,
	}, nil
}

// ListForUser returns the orders of a single user, newest first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]models.OrderWithRefs, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAll returns every order with references, newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.OrderWithRefs, error) {
	return s.orders.ListAll(ctx)
}
