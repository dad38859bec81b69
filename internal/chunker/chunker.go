// Package chunker splits normalized document text into bounded-length,
// retrieval-sized chunks. Boundaries are chosen at sentence breaks using a
// term-frequency discontinuity signal, so a chunk tends to end where the
// topic shifts rather than mid-thought. Splitting is fully deterministic:
// identical text and configuration always produce identical boundaries.
package chunker

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk is one bounded slice of the input text. Text includes the overlap
// prefix repeated from the previous chunk; OverlapLen gives that prefix's
// byte length so the original text can be reassembled exactly. Offset is the
// byte offset of the non-overlap portion within the input text.
type Chunk struct {
	Ordinal    int
	Text       string
	Tokens     int
	Offset     int
	OverlapLen int
	HardSplit  bool
}

// Config bounds chunk sizes in estimated tokens. OverlapTokens of trailing
// text from each chunk are repeated as a prefix of the next.
type Config struct {
	MaxTokens     int
	MinTokens     int
	OverlapTokens int
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("chunker: max tokens must be positive, got %d", c.MaxTokens)
	}
	if c.MinTokens < 0 || c.MinTokens > c.MaxTokens {
		return fmt.Errorf("chunker: min tokens %d out of range [0, %d]", c.MinTokens, c.MaxTokens)
	}
	if c.OverlapTokens < 0 || c.OverlapTokens >= c.MaxTokens {
		return fmt.Errorf("chunker: overlap tokens %d must be in [0, %d)", c.OverlapTokens, c.MaxTokens-1)
	}
	return nil
}

// Chunker splits text according to its Config.
type Chunker struct {
	cfg Config
}

// New returns a Chunker or an error for invalid configuration.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Split chunks text. An empty (or all-whitespace) input yields no chunks.
// A text shorter than MinTokens yields exactly one chunk. No chunk's token
// estimate exceeds MaxTokens.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	units := sentences(text)
	units = c.hardSplitOversized(units)

	maxBytes := c.cfg.MaxTokens * charsPerToken
	minBytes := c.cfg.MinTokens * charsPerToken

	var chunks []Chunk
	var overlap string // prefix repeated from the previous chunk
	offset := 0
	i := 0
	for i < units.Len() {
		// Grow the window while the chunk (overlap included) fits.
		blen := len(overlap)
		j := i
		for j < len(units.texts) && blen+len(units.texts[j]) <= maxBytes {
			blen += len(units.texts[j])
			j++
		}
		if j == i {
			// Even one unit does not fit next to the overlap; drop the
			// overlap for this chunk rather than violate the limit.
			overlap = ""
			blen = len(units.texts[j])
			j++
		}

		end := j
		if j < len(units.texts) {
			end = c.pickBoundary(units.texts, i, j, len(overlap), minBytes)
		}

		body := strings.Join(units.texts[i:end], "")
		chunk := Chunk{
			Ordinal:    len(chunks),
			Text:       overlap + body,
			Tokens:     tokensForBytes(len(overlap) + len(body)),
			Offset:     offset,
			OverlapLen: len(overlap),
			HardSplit:  anyHard(units.hard[i:end]),
		}
		chunks = append(chunks, chunk)

		offset += len(body)
		overlap = ""
		if c.cfg.OverlapTokens > 0 && end < len(units.texts) {
			overlap = trailingOverlap(units.texts[i:end], c.cfg.OverlapTokens*charsPerToken)
		}
		i = end
	}
	return chunks
}

// Reassemble concatenates chunk texts in ordinal order, stripping each
// chunk's overlap prefix, reproducing the exact input of Split.
func Reassemble(chunks []Chunk) string {
	var b strings.Builder
	for _, ch := range chunks {
		b.WriteString(ch.Text[ch.OverlapLen:])
	}
	return b.String()
}

// pickBoundary chooses the split point in (i, j] with the strongest
// term-frequency discontinuity between the text before and after it,
// preferring the candidate nearest the size limit on equal scores. Candidates
// below the minimum chunk size are skipped unless no candidate clears it.
func (c *Chunker) pickBoundary(units []string, i, j, overlapLen, minBytes int) int {
	best, bestScore := -1, math.Inf(-1)
	blen := overlapLen
	for k := i; k < j; k++ {
		blen += len(units[k])
		if blen < minBytes && k < j-1 {
			continue
		}
		score := boundaryScore(units, k+1)
		if score >= bestScore {
			best, bestScore = k+1, score
		}
	}
	if best < 0 {
		return j
	}
	return best
}

// boundaryWindow is the number of sentence units compared on each side of a
// candidate boundary when scoring it.
const boundaryWindow = 3

// boundaryScore rates the boundary before units[k] as 1 minus the cosine
// similarity of the term-frequency vectors of the adjacent sentence windows.
// A score near 1 means the vocabulary shifts sharply at k, near 0 means the
// windows discuss the same terms.
func boundaryScore(units []string, k int) float64 {
	lo := k - boundaryWindow
	if lo < 0 {
		lo = 0
	}
	hi := k + boundaryWindow
	if hi > len(units) {
		hi = len(units)
	}
	left := termFreq(units[lo:k])
	right := termFreq(units[k:hi])
	return 1 - cosine(left, right)
}

func termFreq(units []string) map[string]float64 {
	tf := make(map[string]float64)
	for _, u := range units {
		for _, w := range strings.FieldsFunc(u, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}) {
			tf[strings.ToLower(w)]++
		}
	}
	return tf
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for w, x := range a {
		dot += x * b[w]
		na += x * x
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// anyHard reports whether any unit in the range came from a hard cut.
func anyHard(hard []bool) bool {
	for _, h := range hard {
		if h {
			return true
		}
	}
	return false
}

// unitList carries sentence units and a parallel flag marking units produced
// by an arbitrary cut of an oversized sentence.
type unitList struct {
	texts []string
	hard  []bool
}

func (u unitList) Len() int { return len(u.texts) }

// hardSplitOversized cuts any single unit whose byte length exceeds the
// chunk limit into limit-sized pieces at rune boundaries, flagging them.
func (c *Chunker) hardSplitOversized(units unitList) unitList {
	maxBytes := c.cfg.MaxTokens * charsPerToken
	out := unitList{}
	for _, u := range units.texts {
		if len(u) <= maxBytes {
			out.texts = append(out.texts, u)
			out.hard = append(out.hard, false)
			continue
		}
		for len(u) > 0 {
			cut := maxBytes
			if cut > len(u) {
				cut = len(u)
			}
			for cut > 0 && cut < len(u) && !utf8.RuneStart(u[cut]) {
				cut--
			}
			out.texts = append(out.texts, u[:cut])
			out.hard = append(out.hard, true)
			u = u[cut:]
		}
	}
	return out
}

// sentences splits text into units that concatenate back to the exact input.
// A unit ends after a sentence terminator followed by whitespace (the
// whitespace run stays attached to the unit) or after a run of newlines
// (paragraph break). Terminators cover Latin, Hebrew, and Arabic punctuation.
func sentences(text string) unitList {
	var units []string
	start := 0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r == '\n' {
			for i < len(text) && text[i] == '\n' {
				i++
			}
			units = append(units, text[start:i])
			start = i
			continue
		}
		if isTerminator(r) {
			j := i
			for j < len(text) {
				nr, nsize := utf8.DecodeRuneInString(text[j:])
				if !unicode.IsSpace(nr) {
					break
				}
				j += nsize
			}
			if j > i || j == len(text) {
				units = append(units, text[start:j])
				start = j
				i = j
			}
		}
	}
	if start < len(text) {
		units = append(units, text[start:])
	}
	return unitList{texts: units, hard: make([]bool, len(units))}
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '؟', '。', '؛', ':':
		return true
	}
	return false
}

// trailingOverlap returns the suffix of the chunk's units whose combined
// length reaches wantBytes, whole units only, never the entire chunk.
func trailingOverlap(units []string, wantBytes int) string {
	total := 0
	k := len(units)
	for k > 1 && total < wantBytes {
		k--
		total += len(units[k])
	}
	if k == 0 {
		k = 1
	}
	return strings.Join(units[k:], "")
}
