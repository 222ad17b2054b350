// Package phone canonicalizes Brazilian phone numbers to digits-only strings
// that always carry the country code.
package phone

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/signingbridge/internal/apperr"
)

// CountryCode is the home country code prepended to national numbers.
const CountryCode = "55"

// Number is a canonical phone number: 12 or 13 digits starting with CountryCode.
type Number string

// Normalize strips formatting and returns the canonical form of raw.
//
// 10 or 11 digits are treated as a national number (area code + subscriber)
// and get the country code prepended. 12 or 13 digits must already start with
// the country code. Anything else is rejected.
func Normalize(raw string) (Number, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch n := len(digits); {
	case n == 10 || n == 11:
		return Number(CountryCode + digits), nil
	case n == 12 || n == 13:
		if !strings.HasPrefix(digits, CountryCode) {
			return "", &apperr.ValidationError{
				Field:  "phone",
				Reason: fmt.Sprintf("%d-digit number must start with country code %s", n, CountryCode),
			}
		}
		return Number(digits), nil
	default:
		return "", &apperr.ValidationError{
			Field:  "phone",
			Reason: fmt.Sprintf("expected 10 to 13 digits, got %d", n),
		}
	}
}

// CountryCode returns the country-code part of the number.
func (n Number) CountryCode() string {
	return CountryCode
}

// National returns the number without its country code.
func (n Number) National() string {
	return strings.TrimPrefix(string(n), CountryCode)
}

func (n Number) String() string { return string(n) }
