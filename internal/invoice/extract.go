package invoice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"apalloc_backend/internal/money"
	"apalloc_backend/internal/pdftext"

	"github.com/shopspring/decimal"
)

const backendUnavailableWarning = "no pdf-text backend available"

// extractText runs the PDF collaborator and folds its failure modes
// into the two-tier error model: unavailable backend and extraction
// faults both become a warning, never an error past the parser.
func extractText(ctx context.Context, ext pdftext.Extractor, filename string, raw []byte) (string, string) {
	if ext == nil {
		return "", backendUnavailableWarning
	}
	text, err := ext.Extract(ctx, raw)
	if err != nil {
		if errors.Is(err, pdftext.ErrUnavailable) {
			return "", backendUnavailableWarning
		}
		return "", fmt.Sprintf("could not extract text from %s: %v", filename, err)
	}
	// Dash variants vary between invoice renderings; fold them before
	// any pattern runs.
	return strings.ReplaceAll(text, "–", "-"), ""
}

// moneyFromText tries an ordered list of label patterns, each with one
// capture group, and returns the first parseable amount quantized to 2
// fraction digits.
func moneyFromText(text string, patterns []*regexp.Regexp) *decimal.Decimal {
	for _, pattern := range patterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if value, ok := money.Parse(match[1]); ok {
			q := money.Quantize(value)
			return &q
		}
	}
	return nil
}

func firstSubmatch(text string, patterns ...*regexp.Regexp) string {
	for _, pattern := range patterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			return strings.TrimSpace(match[1])
		}
	}
	return ""
}
