package pattern

import "regexp"

// PIIPattern describes one named PII detector. Validate, when set, is a
// post-match predicate: matches failing it are discarded. This is how the
// credit card pattern avoids reporting arbitrary 16-digit numbers.
type PIIPattern struct {
	Name       string
	Category   Category
	Regex      *regexp.Regexp
	Confidence float64
	Validate   func(match string) bool
}

var piiPatterns = []PIIPattern{
	{
		Name:       "email",
		Category:   CategoryPII,
		Regex:      regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		Confidence: 0.9,
	},
	{
		Name:       "phone",
		Category:   CategoryPII,
		Regex:      regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?[0-9]{3}\)?[-.\s][0-9]{3}[-.\s]?[0-9]{4}\b`),
		Confidence: 0.7,
	},
	{
		Name:       "ssn",
		Category:   CategoryPII,
		Regex:      regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Confidence: 0.85,
	},
	{
		Name:       "credit_card",
		Category:   CategoryPII,
		Regex:      regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`),
		Confidence: 0.9,
		Validate:   Luhn,
	},
	{
		Name:       "ip_address",
		Category:   CategoryPII,
		Regex:      regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`),
		Confidence: 0.6,
	},
}

// PIIPatterns returns the built-in PII catalog.
func PIIPatterns() []PIIPattern {
	out := make([]PIIPattern, len(piiPatterns))
	copy(out, piiPatterns)
	return out
}

// PIIPatternByName looks up a PII pattern by name.
func PIIPatternByName(name string) (PIIPattern, bool) {
	for _, p := range piiPatterns {
		if p.Name == name {
			return p, true
		}
	}
	return PIIPattern{}, false
}

// Luhn reports whether the digits in s satisfy the Luhn mod-10 checksum.
// Non-digit characters are ignored; fewer than 2 digits fails.
func Luhn(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 2 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
