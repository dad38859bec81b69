// Package extract converts raw document bytes (PDF, DOCX, CSV) into an
// ordered sequence of plain-text segments with page/row provenance.
// Each supported format has its own Extractor implementation behind a
// common interface; adding a format means adding a variant, not patching
// conditionals. Extraction performs no network or store access.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Format identifies a supported document format.
type Format string

const (
	// FormatPDF is a PDF document; segments are pages.
	FormatPDF Format = "pdf"
	// FormatDOCX is an OOXML word-processing document; segments are paragraphs.
	FormatDOCX Format = "docx"
	// FormatCSV is a comma-separated table; segments are data rows.
	FormatCSV Format = "csv"
)

// Extraction error kinds. Callers classify with [errors.Is].
var (
	// ErrUnsupportedFormat reports a mime type no extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrCorruptDocument reports unparsable structure (encrypted or truncated input).
	ErrCorruptDocument = errors.New("corrupt document")
	// ErrEmptyDocument reports that no extractable text exists.
	ErrEmptyDocument = errors.New("empty document")
)

// Locator identifies where a segment came from within its source document.
type Locator struct {
	// Unit is the provenance unit: "page", "paragraph", or "row".
	Unit string
	// Position is the 1-based page, paragraph, or data-row number.
	Position int
}

// String renders the locator for provenance display, e.g. "page 3".
func (l Locator) String() string {
	return fmt.Sprintf("%s %d", l.Unit, l.Position)
}

// Segment is one ordered unit of extracted text.
type Segment struct {
	// Loc is the page/row provenance of this segment.
	Loc Locator
	// Text is the raw extracted text, in the reading order reported by the
	// source format. For columnar PDF layouts this may differ from visual
	// order; that is a known limitation of the source format's reporting.
	Text string
	// LangHint is an optional BCP-47 language hint carried from ingestion
	// metadata. Empty means "detect downstream".
	LangHint string
	// VisualOrder marks text that the source emits in visual (display)
	// order rather than logical order. PDF text layers with RTL scripts
	// commonly need this; the normalizer uses it to decide whether to
	// reorder.
	VisualOrder bool
}

// Extractor converts raw bytes of one specific format into segments.
type Extractor interface {
	// Format returns the format this extractor handles.
	Format() Format
	// Extract parses data and returns the ordered segments.
	Extract(data []byte) ([]Segment, error)
}

// mimeFormats maps declared mime types to formats. The closed set of
// variants lives here; unrecognized types fail with ErrUnsupportedFormat.
var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"text/csv":                 FormatCSV,
	"application/csv":          FormatCSV,
	"text/comma-separated-values": FormatCSV,
}

// DetectFormat resolves the format from the declared mime type, falling back
// to magic-byte sniffing when the declaration is empty or unknown.
func DetectFormat(data []byte, mimeType string) (Format, error) {
	if mt := strings.ToLower(strings.TrimSpace(mimeType)); mt != "" {
		// Parameters like "; charset=utf-8" are not part of the type.
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		if f, ok := mimeFormats[mt]; ok {
			return f, nil
		}
		return "", fmt.Errorf("extract: mime type %q: %w", mimeType, ErrUnsupportedFormat)
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return FormatPDF, nil
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		// A ZIP container; DOCX is the only zipped format we accept.
		return FormatDOCX, nil
	}
	return "", fmt.Errorf("extract: could not sniff format: %w", ErrUnsupportedFormat)
}

// Extract dispatches to the extractor for the declared or sniffed format and
// returns the ordered segments. It guarantees a non-empty result: documents
// with no extractable text fail with ErrEmptyDocument.
func Extract(data []byte, mimeType string) ([]Segment, error) {
	format, err := DetectFormat(data, mimeType)
	if err != nil {
		return nil, err
	}

	var ex Extractor
	switch format {
	case FormatPDF:
		ex = &PDFExtractor{}
	case FormatDOCX:
		ex = &DOCXExtractor{}
	case FormatCSV:
		ex = &CSVExtractor{}
	default:
		return nil, fmt.Errorf("extract: format %q: %w", format, ErrUnsupportedFormat)
	}

	segs, err := ex.Extract(data)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("extract: %s has no extractable text: %w", format, ErrEmptyDocument)
	}
	return segs, nil
}
