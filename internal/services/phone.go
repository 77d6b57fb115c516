package services

import (
	"strings"

	"github.com/BradenHooton/stylebook/internal/models"
)

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// NormalizePhone reduces a phone number to its digits. Booking and the admin
// client operations both key clients by this value.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", models.ErrInvalidPhone
	}
	return digits, nil
}
