package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts one segment per page from a PDF text layer.
//
// Reading order is whatever the PDF's content stream reports. Multi-column
// layouts may interleave columns, and right-to-left scripts are commonly
// stored in visual order, so every PDF segment is marked VisualOrder and
// left to the normalizer to reorder.
type PDFExtractor struct{}

// Format returns FormatPDF.
func (e *PDFExtractor) Format() Format { return FormatPDF }

// Extract parses the PDF and returns one segment per non-blank page.
// Encrypted or structurally broken files fail with ErrCorruptDocument.
func (e *PDFExtractor) Extract(data []byte) ([]Segment, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: pdf open: %w: %v", ErrCorruptDocument, err)
	}

	var segs []Segment
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract: pdf page %d: %w: %v", i, ErrCorruptDocument, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		segs = append(segs, Segment{
			Loc:         Locator{Unit: "page", Position: i},
			Text:        text,
			VisualOrder: true,
		})
	}
	return segs, nil
}
