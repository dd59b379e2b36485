package actions

import (
	"errors"
	"testing"

	"github.com/rootzsu/servicebot/internal/models"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Action{
		{Kind: KindMainMenu},
		{Kind: KindPriceList},
		{Kind: KindCancelOrder},
		{Kind: KindSelectService, ServiceID: 3},
		{Kind: KindPay, Method: models.PaymentBTC, ServiceID: 7},
		{Kind: KindApprove, OrderID: 15},
		{Kind: KindDecline, OrderID: 2},
	}
	for _, want := range cases {
		unique, payload := Encode(want)
		got, err := Decode(unique, payload)
		if err != nil {
			t.Errorf("%s: decode: %v", want.Kind, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %+v, want %+v", want.Kind, got, want)
		}
	}
}

func TestDecodeRejectsUnknownUnique(t *testing.T) {
	if _, err := Decode("self_destruct", ""); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		unique  string
		payload string
	}{
		{string(KindSelectService), "abc"},
		{string(KindSelectService), ""},
		{string(KindSelectService), "-4"},
		{string(KindPay), "BTC"},
		{string(KindPay), "GOLD:3"},
		{string(KindPay), "BTC:zero"},
		{string(KindApprove), "nope"},
		{string(KindDecline), ""},
	}
	for _, tc := range cases {
		if _, err := Decode(tc.unique, tc.payload); !errors.Is(err, ErrBadPayload) {
			t.Errorf("Decode(%q, %q): err = %v, want ErrBadPayload", tc.unique, tc.payload, err)
		}
	}
}

func TestUniquesCoverEveryKind(t *testing.T) {
	seen := make(map[Kind]bool)
	for _, k := range Uniques() {
		if seen[k] {
			t.Errorf("duplicate unique %q", k)
		}
		seen[k] = true
		if _, err := Decode(string(k), "1"); err != nil && !errors.Is(err, ErrBadPayload) {
			t.Errorf("unique %q does not decode: %v", k, err)
		}
	}
	if len(seen) != 13 {
		t.Fatalf("uniques = %d, want 13", len(seen))
	}
}
