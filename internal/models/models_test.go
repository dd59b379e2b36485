package models

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusPendingPayment, StatusPendingApproval, true},
		{StatusPendingApproval, StatusApproved, true},
		{StatusPendingApproval, StatusDeclined, true},
		{StatusPendingPayment, StatusApproved, false},
		{StatusPendingPayment, StatusDeclined, false},
		{StatusPendingApproval, StatusPendingPayment, false},
		{StatusApproved, StatusDeclined, false},
		{StatusApproved, StatusPendingApproval, false},
		{StatusDeclined, StatusApproved, false},
		{StatusDeclined, StatusPendingPayment, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPendingPayment.Terminal() || StatusPendingApproval.Terminal() {
		t.Error("pending statuses must not be terminal")
	}
	if !StatusApproved.Terminal() || !StatusDeclined.Terminal() {
		t.Error("approved/declined must be terminal")
	}
	if OrderStatus("bogus").Terminal() {
		t.Error("unknown status must not report terminal")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	for raw, want := range map[string]PaymentMethod{
		"usd":     PaymentUSD,
		"BTC":     PaymentBTC,
		" stars ": PaymentStars,
	} {
		got, err := ParsePaymentMethod(raw)
		if err != nil {
			t.Fatalf("ParsePaymentMethod(%q): %v", raw, err)
		}
		if got != want {
			t.Errorf("ParsePaymentMethod(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParsePaymentMethod("gold"); err == nil {
		t.Error("expected error for unknown method")
	}
}
