package maxipago

import (
	"fmt"
	"strings"
)

// DigitsOnly strips everything but 0-9 so documents and phone numbers fit
// the gateway's numeric fields.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone renders a Brazilian phone number as (DD)NNNNNNNNN for the XML
// contact block. Numbers without an area code pass through digit-stripped.
func FormatPhone(phone string) string {
	digits := DigitsOnly(phone)
	if strings.HasPrefix(digits, "55") && len(digits) > 11 {
		digits = digits[2:]
	}
	if len(digits) < 10 {
		return digits
	}
	return fmt.Sprintf("(%s)%s", digits[:2], digits[2:])
}

// FormatZipCode renders a CEP as NNNNN-NNN.
func FormatZipCode(zip string) string {
	digits := DigitsOnly(zip)
	if len(digits) != 8 {
		return digits
	}
	return digits[:5] + "-" + digits[5:]
}

// FormatAmount renders an amount in cents as the gateway's decimal string.
func FormatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// SplitName splits a full name into the first/last pair the consumer
// registration envelope requires.
func SplitName(name string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], parts[0]
	}
	return parts[0], strings.Join(parts[1:], " ")
}
