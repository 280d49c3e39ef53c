// Package money provides fixed-point monetary parsing and the text
// normalization primitives used before every comparison-sensitive
// operation in the allocation engine.
package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	headerRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

// Parse extracts a decimal amount from free-form text. Currency symbols
// and thousands separators are stripped; a parenthesized value and a
// leading minus sign each independently mark the amount as negative.
// The boolean is false when the residue is not numeric. Parse never
// panics; false is the only error channel.
func Parse(text string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = cleaned[1:]
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// MustParse is Parse for trusted literals (rule tables, tests).
// It panics on malformed input.
func MustParse(text string) decimal.Decimal {
	d, ok := Parse(text)
	if !ok {
		panic("money: unparseable literal " + text)
	}
	return d
}

// Quantize rounds a value to the 2 fraction digits used at rest.
// Intermediate unit costs keep full precision; callers quantize once
// when a value becomes an allocation row or a summary total.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// NormalizeText collapses whitespace runs to a single space, maps the
// en dash to a plain hyphen, and trims.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "–", "-")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeEmail lowercases and trims an email so it can serve as a
// directory key. Every email in the system passes through here before
// use.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeHeader folds a CSV header for role matching: lowercase,
// non-alphanumeric runs collapsed to underscores, outer underscores
// trimmed.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = headerRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
