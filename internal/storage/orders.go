package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rootzsu/servicebot/internal/models"
)

// OrderRepo persists the append-only order ledger. Orders are never
// deleted by this repository; only status and proof mutate in place.
type OrderRepo struct {
	db *sqlx.DB
}

// NewOrderRepo constructs an OrderRepo over the shared connection pool.
func NewOrderRepo(db *sqlx.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create appends a new order in pending_payment status.
func (r *OrderRepo) Create(ctx context.Context, userID, serviceID int64, method models.PaymentMethod) (models.Order, error) {
	var o models.Order
	err := r.db.GetContext(ctx, &o,
		`INSERT INTO orders (user_id, service_id, payment_method, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING order_id, user_id, service_id, payment_method, status, payment_proof`,
		userID, serviceID, method, models.StatusPendingPayment)
	if err != nil {
		return models.Order{}, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// GetByID returns a single order.
func (r *OrderRepo) GetByID(ctx context.Context, id int64) (models.Order, error) {
	var o models.Order
	err := r.db.GetContext(ctx, &o,
		`SELECT order_id, user_id, service_id, payment_method, status, payment_proof
		 FROM orders WHERE order_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

const orderWithRefsColumns = `
	o.order_id, o.user_id, o.service_id, o.payment_method, o.status, o.payment_proof,
	s.name AS service_name, u.first_name AS user_first_name, u.username AS user_username`

// GetByIDWithRefs returns an order joined with its service and owner.
func (r *OrderRepo) GetByIDWithRefs(ctx context.Context, id int64) (models.OrderWithRefs, error) {
	var o models.OrderWithRefs
	err := r.db.GetContext(ctx, &o,
		`SELECT `+orderWithRefsColumns+`
		 FROM orders o
		 JOIN services s ON s.service_id = o.service_id
		 JOIN users u ON u.user_id = o.user_id
		 WHERE o.order_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OrderWithRefs{}, ErrOrderNotFound
	}
	if err != nil {
		return models.OrderWithRefs{}, fmt.Errorf("get order %d with refs: %w", id, err)
	}
	return o, nil
}

// UpdateStatus performs a guarded status mutation in a single atomic
// statement: the row must currently carry the expected status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE order_id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// AttachProof records the payment proof file handle and advances the
// order to pending_approval in the same guarded statement.
func (r *OrderRepo) AttachProof(ctx context.Context, id int64, fileID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_proof = $1, status = $2 WHERE order_id = $3 AND status = $4`,
		fileID, models.StatusPendingApproval, id, models.StatusPendingPayment)
	if err != nil {
		return fmt.Errorf("attach proof to order %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// ListByUser returns the orders of a single user, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID int64) ([]models.OrderWithRefs, error) {
	var out []models.OrderWithRefs
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+orderWithRefsColumns+`
		 FROM orders o
		 JOIN services s ON s.service_id = o.service_id
		 JOIN users u ON u.user_id = o.user_id
		 WHERE o.user_id = $1
		 ORDER BY o.order_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for user %d: %w", userID, err)
	}
	return out, nil
}

// ListAll returns every order with references, newest first.
func (r *OrderRepo) ListAll(ctx context.Context) ([]models.OrderWithRefs, error) {
	var out []models.OrderWithRefs
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+orderWithRefsColumns+`
		 FROM orders o
		 JOIN services s ON s.service_id = o.service_id
		 JOIN users u ON u.user_id = o.user_id
		 ORDER BY o.order_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}
