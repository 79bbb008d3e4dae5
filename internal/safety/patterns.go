// Package safety implements the PII Safety Gate: every captured text passes
// through a Gate before it reaches the dedup filter or the embedder, so
// that nothing past this point ever sees a raw credit card number, SSN,
// email address, or phone number.
package safety

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/engramhq/engram/internal/types"
)

// pattern holds a compiled regex for detecting a specific PII kind, plus an
// optional validator to cut down on false positives (e.g. Luhn for credit
// cards).
type pattern struct {
	kind     types.PIIKind
	regex    *regexp.Regexp
	validate func(match string) bool
}

// placeholderPattern recognizes a Gate's own "[REDACTED:<kind>]" output, so
// that re-running Redact over already-redacted text re-derives the same
// pii_flags it produced the first time instead of finding nothing.
var placeholderPattern = regexp.MustCompile(`\[REDACTED:(credit_card|ssn|email|phone)\]`)

// compilePatterns returns the detection pattern table. Order matters, since
// Redact applies the patterns one after another: email, SSN, phone, then
// credit card.
func compilePatterns() []*pattern {
	return []*pattern{
		{
			kind:  types.PIIKindEmail,
			regex: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		},
		{
			kind:  types.PIIKindSSN,
			regex: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			validate: validateSSN,
		},
		{
			kind:  types.PIIKindPhone,
			regex: regexp.MustCompile(`(?:\+[1-9]\d{1,14})|(?:\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4})`),
		},
		{
			kind:     types.PIIKindCreditCard,
			regex:    regexp.MustCompile(`\b(?:\d[\s\-]?){13,19}\b`),
			validate: validateCreditCard,
		},
	}
}

// validateSSN checks that a matched SSN is not an obviously invalid number.
// SSNs cannot start with 000, 666, or 900-999 in the area number, and the
// group/serial portions cannot be all zeros.
func validateSSN(match string) bool {
	if len(match) != 11 {
		return false
	}
	area := match[0:3]
	group := match[4:6]
	serial := match[7:11]

	if area == "000" || area == "666" {
		return false
	}
	if area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}

// validateCreditCard strips whitespace and dashes, then checks that the
// remaining digits pass the Luhn algorithm.
func validateCreditCard(match string) bool {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, match)

	n := len(cleaned)
	if n < 13 || n > 19 {
		return false
	}

	return luhnCheck(cleaned)
}

// luhnCheck performs the Luhn checksum on a string of digits.
func luhnCheck(number string) bool {
	sum := 0
	alt := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}
