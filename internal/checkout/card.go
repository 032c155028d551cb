package checkout

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/travel-bookings/internal/domain"
)

// Card carries the client-side form fields. Validation happens before any
// write so a malformed card never creates a payment row.
type Card struct {
	Number string
	CVC    string
	Expiry string // MM/YY
}

func ValidateCard(c Card, now time.Time) error {
	number := strings.ReplaceAll(c.Number, " ", "")
	if len(number) != 16 || !allDigits(number) {
		return errors.Wrap(domain.ErrValidation, "card number must be 16 digits")
	}
	if len(c.CVC) != 3 || !allDigits(c.CVC) {
		return errors.Wrap(domain.ErrValidation, "cvc must be 3 digits")
	}

	parts := strings.Split(c.Expiry, "/")
	if len(parts) != 2 {
		return errors.Wrap(domain.ErrValidation, "expiry must be MM/YY")
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return errors.Wrap(domain.ErrValidation, "expiry month invalid")
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return errors.Wrap(domain.ErrValidation, "expiry year invalid")
	}
	year += 2000

	// Valid through the last moment of the expiry month.
	expiresAfter := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if !now.Before(expiresAfter) {
		return errors.Wrap(domain.ErrValidation, "card expired")
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
