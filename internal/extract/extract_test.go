package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectFormat_DeclaredMime(t *testing.T) {
	t.Parallel()
	cases := []struct {
		mime string
		want Format
	}{
		{"application/pdf", FormatPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", FormatDOCX},
		{"text/csv", FormatCSV},
		{"text/csv; charset=utf-8", FormatCSV},
		{"TEXT/CSV", FormatCSV},
	}
	for _, tc := range cases {
		got, err := DetectFormat(nil, tc.mime)
		if err != nil {
			t.Errorf("DetectFormat(%q): unexpected error %v", tc.mime, err)
			continue
		}
		if got != tc.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}

func TestDetectFormat_UnknownMime(t *testing.T) {
	t.Parallel()
	_, err := DetectFormat(nil, "image/png")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDetectFormat_Sniff(t *testing.T) {
	t.Parallel()
	if f, err := DetectFormat([]byte("%PDF-1.7 ..."), ""); err != nil || f != FormatPDF {
		t.Errorf("pdf sniff: got (%q, %v)", f, err)
	}
	if f, err := DetectFormat([]byte("PK\x03\x04rest"), ""); err != nil || f != FormatDOCX {
		t.Errorf("zip sniff: got (%q, %v)", f, err)
	}
	if _, err := DetectFormat([]byte("hello"), ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("plain text sniff: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCSVExtractor_QualifiedRows(t *testing.T) {
	t.Parallel()
	data := []byte("name,department,start date\nDana,Finance,2023-01-15\nNoam,,2024-06-01\n")

	segs, err := (&CSVExtractor{}).Extract(data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}

	if segs[0].Loc.Unit != "row" || segs[0].Loc.Position != 1 {
		t.Errorf("segment 0 locator = %+v, want row 1", segs[0].Loc)
	}
	want := "name: Dana; department: Finance; start date: 2023-01-15"
	if segs[0].Text != want {
		t.Errorf("segment 0 text = %q, want %q", segs[0].Text, want)
	}

	// Blank cells are skipped, not rendered as "department: ".
	if strings.Contains(segs[1].Text, "department") {
		t.Errorf("segment 1 should skip the blank department cell: %q", segs[1].Text)
	}
	if segs[1].Loc.Position != 2 {
		t.Errorf("segment 1 locator position = %d, want 2", segs[1].Loc.Position)
	}
}

func TestCSVExtractor_RaggedRow(t *testing.T) {
	t.Parallel()
	data := []byte("a,b\n1,2,3\n")

	segs, err := (&CSVExtractor{}).Extract(data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	// The extra cell gets a positional name instead of being dropped.
	if !strings.Contains(segs[0].Text, "column 3: 3") {
		t.Errorf("expected positional column name in %q", segs[0].Text)
	}
}

func TestCSVExtractor_BadQuoting(t *testing.T) {
	t.Parallel()
	data := []byte("a,b\n\"unterminated,2\n")

	_, err := (&CSVExtractor{}).Extract(data)
	if !errors.Is(err, ErrCorruptDocument) {
		t.Errorf("expected ErrCorruptDocument, got %v", err)
	}
}

func TestExtract_EmptyCSV(t *testing.T) {
	t.Parallel()
	_, err := Extract([]byte("only,a,header\n"), "text/csv")
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestExtract_TruncatedPDF(t *testing.T) {
	t.Parallel()
	_, err := Extract([]byte("%PDF-1.7\nnot actually a pdf"), "application/pdf")
	if !errors.Is(err, ErrCorruptDocument) {
		t.Errorf("expected ErrCorruptDocument, got %v", err)
	}
}

func TestTextRuns(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{`<w:r><w:t>Hello</w:t></w:r><w:r><w:t> world</w:t></w:r>`, "Hello world"},
		{`<w:t xml:space="preserve">a b</w:t>`, "a b"},
		{`<w:pPr/>no runs here`, ""},
		{`<w:t>a &amp; b &lt;c&gt;</w:t>`, "a & b <c>"},
	}
	for _, tc := range cases {
		if got := textRuns(tc.in); got != tc.want {
			t.Errorf("textRuns(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
