// Package storage provides sqlx-backed repositories over the three
// relational tables: users, services, orders.
package storage

import "errors"

var (
	// ErrUserNotFound is returned when no user row matches the lookup.
	ErrUserNotFound = errors.New("storage: user not found")
	// ErrServiceNotFound is returned when no service row matches the lookup.
	ErrServiceNotFound = errors.New("storage: service not found")
	// ErrOrderNotFound is returned when no order row matches the lookup.
	ErrOrderNotFound = errors.New("storage: order not found")
	// ErrStatusConflict is returned when a guarded status update matched the
	// order id but not the expected current status.
	ErrStatusConflict = errors.New("storage: order status conflict")
)
