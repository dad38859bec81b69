// Package bidi normalizes bidirectional text into canonical logical
// reading order. PDF text layers frequently store Hebrew and Arabic runs
// in visual order (the order glyphs are painted, right to left); this
// package reorders such runs using the Unicode bidirectional algorithm
// from golang.org/x/text/unicode/bidi, strips explicit directional
// formatting characters, and folds Arabic presentation-form glyphs back
// to their base letters so the embedding pipeline sees plain text.
//
// Shaping (the inverse mapping, base letters to presentation forms) is
// available for rendering paths only and is never applied on the
// embedding path.
package bidi

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/bidi"
)

// ErrUnsupportedScript reports an explicit language hint requesting a
// script this normalizer has no rule table for. Unknown scripts without
// an explicit hint never fail; they pass through with a warning flag.
var ErrUnsupportedScript = errors.New("unsupported script")

// scriptRules maps the primary-subtag of supported language hints to the
// rule table used. Latin-script languages need no reordering or shaping.
var scriptRules = map[string]string{
	"ar": "arabic",
	"fa": "arabic",
	"ur": "arabic",
	"he": "hebrew",
	"yi": "hebrew",
	"en": "latin",
	"fr": "latin",
	"de": "latin",
	"es": "latin",
	"ru": "latin", // Cyrillic is LTR; the latin (no-op) table applies
}

// Result carries the normalized text plus flags the caller persists on the
// segment.
type Result struct {
	// Text is the canonical logical-order text.
	Text string
	// Warned is set when the script could not be identified and the input
	// was passed through unmodified.
	Warned bool
}

// Normalizer reorders and de-shapes bidirectional text. The zero value is
// ready to use.
type Normalizer struct{}

// Normalize returns text in canonical logical reading order.
//
// visualOrder tells the normalizer the input came from a source that emits
// display order (set by the PDF extractor); logical-order input is only
// cleaned, never reordered, which makes Normalize idempotent: the output
// is always logical order, and normalizing it again (visualOrder=false)
// is a no-op.
//
// langHint, when non-empty, must name a script the normalizer has a rule
// table for, otherwise ErrUnsupportedScript is returned. With no hint an
// unidentifiable script passes through with Result.Warned set.
func (n *Normalizer) Normalize(text, langHint string, visualOrder bool) (Result, error) {
	rule, err := resolveRule(text, langHint)
	if err != nil {
		return Result{}, err
	}
	if rule == "" {
		return Result{Text: stripControls(text), Warned: true}, nil
	}

	out := stripControls(text)
	if rule == "arabic" {
		out = Unshape(out)
	}
	if visualOrder && rule != "latin" {
		out = visualToLogical(out)
	}
	return Result{Text: out}, nil
}

// resolveRule picks the rule table for the hint, or detects one from the
// text when the hint is empty. An empty return with nil error means
// "unknown script, pass through".
func resolveRule(text, langHint string) (string, error) {
	if langHint != "" {
		subtag := strings.ToLower(langHint)
		if i := strings.IndexByte(subtag, '-'); i >= 0 {
			subtag = subtag[:i]
		}
		rule, ok := scriptRules[subtag]
		if !ok {
			return "", fmt.Errorf("bidi: language hint %q: %w", langHint, ErrUnsupportedScript)
		}
		return rule, nil
	}

	switch detectScript(text) {
	case scriptArabic:
		return "arabic", nil
	case scriptHebrew:
		return "hebrew", nil
	case scriptLatin:
		return "latin", nil
	default:
		return "", nil
	}
}

// DetectLanguage guesses a primary language subtag from the text's dominant
// script: "he", "ar", or "en". Empty when the script is unidentified.
func DetectLanguage(text string) string {
	switch detectScript(text) {
	case scriptArabic:
		return "ar"
	case scriptHebrew:
		return "he"
	case scriptLatin:
		return "en"
	default:
		return ""
	}
}

type script int

const (
	scriptUnknown script = iota
	scriptLatin
	scriptHebrew
	scriptArabic
)

// detectScript classifies text by its dominant strong script. Digits and
// punctuation are neutral; a text with no strong characters at all counts
// as Latin (nothing to reorder).
func detectScript(text string) script {
	var latin, hebrew, arabic int
	for _, r := range text {
		switch {
		case r >= 0x0590 && r <= 0x05FF:
			hebrew++
		case (r >= 0x0600 && r <= 0x06FF) || (r >= 0x0750 && r <= 0x077F) ||
			(r >= 0xFB50 && r <= 0xFDFF) || (r >= 0xFE70 && r <= 0xFEFF):
			arabic++
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= 0x00C0 && r <= 0x024F):
			latin++
		case r >= 0x0400: // any other non-ASCII strong character
			return scriptUnknown
		}
	}
	switch {
	case arabic > 0 && arabic >= hebrew:
		return scriptArabic
	case hebrew > 0:
		return scriptHebrew
	default:
		return scriptLatin
	}
}

// directionalControls are the explicit bidi formatting characters removed
// during normalization: embeddings, overrides, isolates, and marks. The
// logical-order output carries direction implicitly through the characters
// themselves.
var directionalControls = map[rune]bool{
	'‎': true, // LRM
	'‏': true, // RLM
	'‪': true, // LRE
	'‫': true, // RLE
	'‬': true, // PDF
	'‭': true, // LRO
	'‮': true, // RLO
	'⁦': true, // LRI
	'⁧': true, // RLI
	'⁨': true, // FSI
	'⁩': true, // PDI
	'؜': true, // ALM
}

// stripControls removes explicit directional formatting characters.
func stripControls(text string) string {
	if !strings.ContainsFunc(text, func(r rune) bool { return directionalControls[r] }) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if directionalControls[r] {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// visualToLogical converts one block of visual-order RTL-dominant text to
// logical order, line by line. A visual RTL line reads right to left, so
// the line is first reversed wholesale; embedded LTR runs (Latin words,
// numerals) end up reversed by that step and are flipped back using the
// run segmentation from the bidi algorithm.
func visualToLogical(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = reorderLine(line)
	}
	return strings.Join(lines, "\n")
}

// runClass buckets bidi character classes for run segmentation.
type runClass int

const (
	classNeutral runClass = iota
	classLTR
	classRTL
)

// classify maps a rune to its run class using the UCD bidi class tables.
// European and Arabic numbers both read left to right inside RTL text.
func classify(r rune) runClass {
	props, _ := bidi.LookupRune(r)
	switch props.Class() {
	case bidi.L, bidi.EN, bidi.AN:
		return classLTR
	case bidi.R, bidi.AL:
		return classRTL
	default:
		return classNeutral
	}
}

// reorderLine applies the visual-to-logical transform to a single line.
// The whole line is reversed (a visual RTL line reads right to left),
// which leaves any embedded LTR island — Latin words, numerals — reversed;
// those islands are located via the bidi class tables and flipped back in
// place. Neutral characters join an island only when enclosed by LTR
// characters on both sides.
func reorderLine(line string) string {
	if line == "" {
		return line
	}
	runes := []rune(reverseRunes(line))

	classes := make([]runClass, len(runes))
	for i, r := range runes {
		classes[i] = classify(r)
	}
	// Resolve neutrals sandwiched between LTR characters into the island.
	for i := range classes {
		if classes[i] != classNeutral {
			continue
		}
		prev := prevStrong(classes, i)
		next := nextStrong(classes, i)
		if prev == classLTR && next == classLTR {
			classes[i] = classLTR
		}
	}

	for start := 0; start < len(runes); {
		if classes[start] != classLTR {
			start++
			continue
		}
		end := start
		for end < len(runes) && classes[end] == classLTR {
			end++
		}
		for i, j := start, end-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		start = end
	}
	return string(runes)
}

// prevStrong returns the class of the nearest non-neutral rune before i.
func prevStrong(classes []runClass, i int) runClass {
	for j := i - 1; j >= 0; j-- {
		if classes[j] != classNeutral {
			return classes[j]
		}
	}
	return classNeutral
}

// nextStrong returns the class of the nearest non-neutral rune after i.
func nextStrong(classes []runClass, i int) runClass {
	for j := i + 1; j < len(classes); j++ {
		if classes[j] != classNeutral {
			return classes[j]
		}
	}
	return classNeutral
}

// reverseRunes reverses a string by code point.
func reverseRunes(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
