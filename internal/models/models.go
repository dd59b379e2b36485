package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a user chose to pay for an order.
type PaymentMethod string

const (
	// PaymentUSD is a fiat transfer.
	PaymentUSD PaymentMethod = "USD"
	// PaymentBTC is a crypto transfer.
	PaymentBTC PaymentMethod = "BTC"
	// PaymentStars is Telegram's built-in Stars currency.
	PaymentStars PaymentMethod = "STARS"
)

// ParsePaymentMethod validates a raw payment method string.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw))); m {
	case PaymentUSD, PaymentBTC, PaymentStars:
		return m, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", raw)
	}
}

// OrderStatus tracks an order through its fixed life cycle.
type OrderStatus string

const (
	// StatusPendingPayment is the initial status of a freshly created order.
	StatusPendingPayment OrderStatus = "pending_payment"
	// StatusPendingApproval means a payment proof has been submitted.
	StatusPendingApproval OrderStatus = "pending_approval"
	// StatusApproved is a terminal admin decision.
	StatusApproved OrderStatus = "approved"
	// StatusDeclined is a terminal admin decision.
	StatusDeclined OrderStatus = "declined"
)

// statusSuccessors encodes the monotonic status chain:
// pending_payment -> pending_approval -> {approved, declined}.
var statusSuccessors = map[OrderStatus][]OrderStatus{
	StatusPendingPayment:  {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusDeclined},
	StatusApproved:        nil,
	StatusDeclined:        nil,
}

// Valid reports whether the status is one of the four known values.
func (s OrderStatus) Valid() bool {
	_, ok := statusSuccessors[s]
	return ok
}

// Terminal reports whether the status has no successors.
func (s OrderStatus) Terminal() bool {
	next, ok := statusSuccessors[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusSuccessors[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Human returns the user-facing (Russian) name of the status.
func (s OrderStatus) Human() string {
	switch s {
	case StatusPendingPayment:
		return "Ожидает оплаты"
	case StatusPendingApproval:
		return "На проверке"
	case StatusApproved:
		return "Одобрен"
	case StatusDeclined:
		return "Отклонен"
	default:
		return "Неизвестно"
	}
}

// User is a Telegram identity known to the bot. Created on first /start;
// name and username are not refreshed on later contacts. PasswordHash is
// set only through dashboard registration.
type User struct {
	ID           int64   `db:"user_id"`
	Username     *string `db:"username"`
	FirstName    string  `db:"first_name"`
	PasswordHash *string `db:"password_hash"`
}

// DisplayName returns the best human-readable label for the user.
func (u User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	return fmt.Sprintf("id%d", u.ID)
}

// Service is a purchasable offering with three parallel price quotations.
type Service struct {
	ID          int64           `db:"service_id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	PriceUSD    decimal.Decimal `db:"price_usd"`
	PriceBTC    decimal.Decimal `db:"price_btc"`
	PriceStars  int64           `db:"price_stars"`
}

// Order is a single purchase attempt tracked through the status life cycle.
// PaymentProof holds an opaque Telegram file handle once submitted.
type Order struct {
	ID            int64         `db:"order_id"`
	UserID        int64         `db:"user_id"`
	ServiceID     int64         `db:"service_id"`
	PaymentMethod PaymentMethod `db:"payment_method"`
	Status        OrderStatus   `db:"status"`
	PaymentProof  *string       `db:"payment_proof"`
}

// OrderWithRefs is an order joined with its service and owner for listings.
type OrderWithRefs struct {
	Order
	ServiceName   string  `db:"service_name"`
	UserFirstName string  `db:"user_first_name"`
	UserUsername  *string `db:"user_username"`
}
