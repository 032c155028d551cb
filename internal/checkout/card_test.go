package checkout

import (
	"errors"
	"testing"
	"time"

	"github.com/robertarktes/travel-bookings/internal/domain"
)

func TestValidateCard(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		card Card
		ok   bool
	}{
		{"valid", Card{Number: "4242424242424242", CVC: "123", Expiry: "12/26"}, true},
		{"valid with spaces", Card{Number: "4242 4242 4242 4242", CVC: "123", Expiry: "12/26"}, true},
		{"expires this month", Card{Number: "4242424242424242", CVC: "123", Expiry: "06/25"}, true},
		{"expired last month", Card{Number: "4242424242424242", CVC: "123", Expiry: "05/25"}, false},
		{"short number", Card{Number: "42424242", CVC: "123", Expiry: "12/26"}, false},
		{"letters in number", Card{Number: "424242424242424x", CVC: "123", Expiry: "12/26"}, false},
		{"short cvc", Card{Number: "4242424242424242", CVC: "12", Expiry: "12/26"}, false},
		{"bad cvc", Card{Number: "4242424242424242", CVC: "12a", Expiry: "12/26"}, false},
		{"bad expiry format", Card{Number: "4242424242424242", CVC: "123", Expiry: "1226"}, false},
		{"month out of range", Card{Number: "4242424242424242", CVC: "123", Expiry: "13/26"}, false},
		{"four digit year", Card{Number: "4242424242424242", CVC: "123", Expiry: "12/2026"}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateCard(c.card, now)
			if c.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !c.ok {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
			}
		})
	}
}
