package centercache

import (
	"strings"
	"unicode"
)

// canonicalCenter folds a center name to lower kebab case, so "CustomerPool",
// "customer_pool" and "customer-pool" share one key namespace and one TTL.
// Characters other than letters and digits become a single separator, which
// keeps glob metacharacters out of the keys DelPattern works on.
func canonicalCenter(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastDash := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case unicode.IsUpper(r):
			if b.Len() > 0 && !lastDash {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('-')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastDash = false

		case unicode.IsLower(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false

		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
