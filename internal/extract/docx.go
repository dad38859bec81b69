package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DOCXExtractor extracts one segment per paragraph from an OOXML word
// document. Paragraph order follows the document body; DOCX has no fixed
// pagination, so the locator counts paragraphs.
type DOCXExtractor struct{}

// Format returns FormatDOCX.
func (e *DOCXExtractor) Format() Format { return FormatDOCX }

// Extract parses the DOCX container and returns one segment per non-blank
// paragraph. Files that are not valid DOCX archives fail with
// ErrCorruptDocument.
func (e *DOCXExtractor) Extract(data []byte) ([]Segment, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("extract: docx open: %w: %v", ErrCorruptDocument, err)
	}
	defer r.Close()

	content := r.Editable().GetContent()

	var segs []Segment
	pos := 0
	for _, para := range splitParagraphXML(content) {
		text := strings.TrimSpace(textRuns(para))
		if text == "" {
			continue
		}
		pos++
		segs = append(segs, Segment{
			Loc:  Locator{Unit: "paragraph", Position: pos},
			Text: text,
		})
	}
	return segs, nil
}

// splitParagraphXML splits the document body XML into per-paragraph fragments.
func splitParagraphXML(content string) []string {
	return strings.Split(content, "</w:p>")
}

// textRuns concatenates the <w:t> text runs of one paragraph fragment,
// dropping all markup. Runs are joined without separators because OOXML
// splits words across runs arbitrarily (e.g. after formatting changes).
func textRuns(fragment string) string {
	var out strings.Builder
	rest := fragment
	for {
		start := strings.Index(rest, "<w:t")
		if start < 0 {
			break
		}
		rest = rest[start:]
		// The tag may carry attributes, e.g. <w:t xml:space="preserve">.
		open := strings.IndexByte(rest, '>')
		if open < 0 {
			break
		}
		rest = rest[open+1:]
		end := strings.Index(rest, "</w:t>")
		if end < 0 {
			break
		}
		out.WriteString(unescapeXML(rest[:end]))
		rest = rest[end+len("</w:t>"):]
	}
	return out.String()
}

// unescapeXML resolves the five predefined XML entities.
func unescapeXML(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	replacer := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
	return replacer.Replace(s)
}
