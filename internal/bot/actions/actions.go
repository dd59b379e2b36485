// Package actions defines the typed callback vocabulary of the bot.
// Every inline button encodes exactly one Action; the callback boundary
// decodes it once, so handlers never touch raw callback strings.
package actions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rootzsu/servicebot/internal/models"
)

// Kind names a callback action. The string value doubles as the
// callback unique wired into inline buttons.
type Kind string

const (
	KindMainMenu     Kind = "main_menu"
	KindPriceList    Kind = "price_list"
	KindOrderService Kind = "order_service"
	KindMyAccount    Kind = "my_account"
	KindContactAdmin Kind = "contact_admin"
	KindAdminPanel   Kind = "admin_panel"
	KindAdminUsers   Kind = "admin_users"
	KindAdminOrders  Kind = "admin_orders"

	KindSelectService Kind = "svc_select"
	KindPay           Kind = "svc_pay"
	KindCancelOrder   Kind = "order_cancel"

	KindApprove Kind = "order_approve"
	KindDecline Kind = "order_decline"
)

// ErrUnknownAction is returned for callback uniques outside the vocabulary.
var ErrUnknownAction = errors.New("actions: unknown action")

// ErrBadPayload is returned when a known action carries a malformed payload.
var ErrBadPayload = errors.New("actions: malformed payload")

// Action is a decoded callback. Only the fields relevant to the Kind
// are populated.
type Action struct {
	Kind      Kind
	ServiceID int64
	OrderID   int64
	Method    models.PaymentMethod
}

// Uniques lists every callback unique the bot responds to, in
// registration order.
func Uniques() []Kind {
	return []Kind{
		KindMainMenu, KindPriceList, KindOrderService, KindMyAccount,
		KindContactAdmin, KindAdminPanel, KindAdminUsers, KindAdminOrders,
		KindSelectService, KindPay, KindCancelOrder,
		KindApprove, KindDecline,
	}
}

// Encode renders an action as a callback (unique, payload) pair.
func Encode(a Action) (string, string) {
	switch a.Kind {
	case KindSelectService:
		return string(a.Kind), strconv.FormatInt(a.ServiceID, 10)
	case KindPay:
		return string(a.Kind), string(a.Method) + ":" + strconv.FormatInt(a.ServiceID, 10)
	case KindApprove, KindDecline:
		return string(a.Kind), strconv.FormatInt(a.OrderID, 10)
	default:
		return string(a.Kind), ""
	}
}

// Decode parses a callback (unique, payload) pair back into an Action.
// Malformed payloads and unknown uniques are rejected at this boundary,
// never deeper in the handlers.
func Decode(unique, payload string) (Action, error) {
	kind := Kind(unique)
	switch kind {
	case KindMainMenu, KindPriceList, KindOrderService, KindMyAccount,
		KindContactAdmin, KindAdminPanel, KindAdminUsers, KindAdminOrders,
		KindCancelOrder:
		return Action{Kind: kind}, nil

	case KindSelectService:
		id, err := parseID(payload)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: kind, ServiceID: id}, nil

	case KindPay:
		parts := strings.SplitN(payload, ":", 2)
		if len(parts) != 2 {
			return Action{}, fmt.Errorf("%w: %q", ErrBadPayload, payload)
		}
		method, err := models.ParsePaymentMethod(parts[0])
		if err != nil {
			return Action{}, fmt.Errorf("%w: %q", ErrBadPayload, payload)
		}
		id, err := parseID(parts[1])
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: kind, Method: method, ServiceID: id}, nil

	case KindApprove, KindDecline:
		id, err := parseID(payload)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: kind, OrderID: id}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, unique)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadPayload, s)
	}
	return id, nil
}
