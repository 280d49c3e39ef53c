// Package pdftext is the PDF-to-text collaborator boundary. Invoice
// parsers consume its single concatenated text stream and must treat
// an unavailable or failing backend as a parser-level warning, never a
// fault that crosses the engine boundary.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnavailable reports that no text backend is configured.
var ErrUnavailable = errors.New("pdftext: no pdf-text backend available")

// Extractor turns raw PDF bytes into one text stream, page breaks as
// newlines.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

// Reader extracts text with the ledongthuc/pdf library, joining page
// rows top to bottom.
type Reader struct{}

// NewReader returns the default extractor.
func NewReader() *Reader {
	return &Reader{}
}

// Extract implements Extractor. Malformed documents return an error;
// callers degrade to an empty parse result plus warning.
func (r *Reader) Extract(ctx context.Context, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("pdftext: empty document")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("pdftext: open document: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("pdftext: page %d: %w", pageNum, err)
		}
		for _, row := range rows {
			for i, word := range row.Content {
				if i > 0 {
					b.WriteString(" ")
				}
				b.WriteString(word.S)
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// Unavailable is an Extractor stand-in for deployments without a text
// backend; every call fails with ErrUnavailable.
type Unavailable struct{}

// Extract always returns ErrUnavailable.
func (Unavailable) Extract(context.Context, []byte) (string, error) {
	return "", ErrUnavailable
}
