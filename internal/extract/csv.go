package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVExtractor extracts one segment per data row. The first record is taken
// as the header; each cell in subsequent rows is rendered as
// "column: value" so the embedded text keeps its column semantics.
type CSVExtractor struct{}

// Format returns FormatCSV.
func (e *CSVExtractor) Format() Format { return FormatCSV }

// Extract parses the CSV and returns one segment per non-empty data row.
// Structural errors (ragged quoting, invalid encoding) fail with
// ErrCorruptDocument; a header-only or blank file yields no segments.
func (e *CSVExtractor) Extract(data []byte) ([]Segment, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // rows may be ragged; qualify only present cells

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract: csv header: %w: %v", ErrCorruptDocument, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var segs []Segment
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("extract: csv row %d: %w: %v", row+1, ErrCorruptDocument, err)
		}
		row++

		text := qualifyRow(header, record)
		if text == "" {
			continue
		}
		segs = append(segs, Segment{
			Loc:  Locator{Unit: "row", Position: row},
			Text: text,
		})
	}
	return segs, nil
}

// qualifyRow renders a record as "col: val; col: val", skipping blank cells.
// Cells beyond the header width fall back to a positional column name.
func qualifyRow(header, record []string) string {
	var parts []string
	for i, cell := range record {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		name := fmt.Sprintf("column %d", i+1)
		if i < len(header) && header[i] != "" {
			name = header[i]
		}
		parts = append(parts, name+": "+cell)
	}
	return strings.Join(parts, "; ")
}
