// Package address normalizes contact addresses into one canonical form so
// flow variables referencing a contact are independent of which backend
// delivered the message.
package address

import "strings"

const brazilCountryCode = "55"

// Canonicalize reduces a raw backend address to its canonical form: digits
// only, country code included, Brazilian mobile ninth digit restored. Any
// backend-specific suffix ("@s.whatsapp.net" and friends) is dropped.
// The function is idempotent: Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(raw string) string {
	if at := strings.IndexByte(raw, '@'); at >= 0 {
		raw = raw[:at]
	}

	digits := keepDigits(raw)
	if digits == "" {
		return ""
	}

	// Domestic Brazilian forms arrive without the country code: DD plus an
	// 8- or 9-digit subscriber number.
	if len(digits) == 10 || len(digits) == 11 {
		digits = brazilCountryCode + digits
	}

	return restoreNinthDigit(digits)
}

// WireAddress builds the backend-specific form of a canonical address by
// appending the adapter's suffix.
func WireAddress(canonical, suffix string) string {
	if suffix == "" {
		return canonical
	}

	return canonical + suffix
}

// restoreNinthDigit maps the legacy 12-digit Brazilian mobile form
// (55 + DD + 8 digits) onto the current 13-digit form. Landlines, whose
// subscriber numbers start with 2-5, are left untouched.
func restoreNinthDigit(digits string) string {
	if len(digits) != 12 || !strings.HasPrefix(digits, brazilCountryCode) {
		return digits
	}

	subscriber := digits[4:]
	if subscriber[0] >= '6' && subscriber[0] <= '9' {
		return digits[:4] + "9" + subscriber
	}

	return digits
}

func keepDigits(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
