package chunker

import (
	"strings"
	"testing"
)

// uniformText builds n sentences of exactly 80 bytes each (20 estimated
// tokens), the last without trailing whitespace.
func uniformText(n int) string {
	sentence := strings.Repeat("ab ", 25) + "end. " // 80 bytes
	text := strings.Repeat(sentence, n)
	return strings.TrimRight(text, " ")
}

func TestSplit_SixChunkDocument(t *testing.T) {
	t.Parallel()

	// Three pages worth of uniform prose, 600 estimated tokens total, with
	// a 100-token limit and no overlap: expect exactly 6 chunks.
	text := uniformText(30)

	c, err := New(Config{MaxTokens: 100, MinTokens: 10})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	chunks := c.Split(text)

	if len(chunks) != 6 {
		t.Fatalf("got %d chunks, want 6", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, ch.Ordinal)
		}
		if ch.Tokens > 100 {
			t.Errorf("chunk %d has %d tokens, over the limit", i, ch.Tokens)
		}
		if ch.HardSplit {
			t.Errorf("chunk %d flagged hard-split", i)
		}
	}
	if got := Reassemble(chunks); got != text {
		t.Error("reassembled text differs from input")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	t.Parallel()

	text := "The ledger closed early. Revenue rose sharply in the second quarter. " +
		"Meanwhile the kitchen flooded. Plumbers arrived after lunch. " +
		"The quarterly report shipped on time regardless."

	c, err := New(Config{MaxTokens: 20, MinTokens: 5, OverlapTokens: 4})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	first := c.Split(text)
	for run := 0; run < 5; run++ {
		again := c.Split(text)
		if len(again) != len(first) {
			t.Fatalf("run %d: %d chunks, want %d", run, len(again), len(first))
		}
		for i := range again {
			if again[i] != first[i] {
				t.Fatalf("run %d chunk %d differs: %+v vs %+v", run, i, again[i], first[i])
			}
		}
	}
}

func TestSplit_OverlapReconstruction(t *testing.T) {
	t.Parallel()

	text := uniformText(12)

	c, err := New(Config{MaxTokens: 100, MinTokens: 10, OverlapTokens: 20})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if i == 0 {
			if ch.OverlapLen != 0 {
				t.Errorf("first chunk has overlap %d", ch.OverlapLen)
			}
			continue
		}
		if ch.OverlapLen == 0 {
			t.Errorf("chunk %d missing overlap", i)
			continue
		}
		prev := chunks[i-1].Text
		prefix := ch.Text[:ch.OverlapLen]
		if !strings.HasSuffix(prev, prefix) {
			t.Errorf("chunk %d overlap is not a suffix of chunk %d", i, i-1)
		}
	}
	if got := Reassemble(chunks); got != text {
		t.Error("reassembled text differs from input")
	}
}

func TestSplit_ShortDocumentSingleChunk(t *testing.T) {
	t.Parallel()

	text := "Tiny note."

	c, err := New(Config{MaxTokens: 100, MinTokens: 50})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	chunks := c.Split(text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	t.Parallel()

	c, err := New(Config{MaxTokens: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := c.Split(""); got != nil {
		t.Errorf("empty input produced %d chunks", len(got))
	}
	if got := c.Split("   \n\n  "); got != nil {
		t.Errorf("whitespace input produced %d chunks", len(got))
	}
}

func TestSplit_HardSplitOversizedSentence(t *testing.T) {
	t.Parallel()

	// One giant unbroken run with no sentence boundary at all.
	text := strings.Repeat("x", 1000)

	c, err := New(Config{MaxTokens: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	chunks := c.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if !ch.HardSplit {
			t.Errorf("chunk %d not flagged hard-split", i)
		}
		if ch.Tokens > 100 {
			t.Errorf("chunk %d has %d tokens, over the limit", i, ch.Tokens)
		}
	}
	if got := Reassemble(chunks); got != text {
		t.Error("reassembled text differs from input")
	}
}

func TestSplit_HardSplitFlagTracksCutContent(t *testing.T) {
	t.Parallel()

	// Ordinary sentences surround one unbroken 900-byte run; the run is cut
	// into fragments that can land anywhere inside a chunk. Exactly the
	// chunks containing a fragment must carry the flag.
	var b strings.Builder
	for range 6 {
		b.WriteString("The quarterly report covers revenue and spending. ")
	}
	b.WriteString(strings.Repeat("z", 900))
	b.WriteString(" ")
	for range 6 {
		b.WriteString("The appendix lists every regional office address. ")
	}
	text := b.String()

	c, err := New(Config{MaxTokens: 100, MinTokens: 10})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	chunks := c.Split(text)
	if len(chunks) < 4 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	sawHard := false
	for i, ch := range chunks {
		wantHard := strings.Contains(ch.Text, "z")
		if ch.HardSplit != wantHard {
			t.Errorf("chunk %d: HardSplit = %v, want %v (text %q...)",
				i, ch.HardSplit, wantHard, ch.Text[:min(40, len(ch.Text))])
		}
		sawHard = sawHard || wantHard
	}
	if !sawHard {
		t.Fatal("no chunk contained the oversized run")
	}
	if got := Reassemble(chunks); got != text {
		t.Error("reassembled text differs from input")
	}
}

func TestSplit_BoundaryPrefersTopicShift(t *testing.T) {
	t.Parallel()

	// Two topics with disjoint vocabulary. The budget forces one split;
	// it should land on the topic change, not mid-topic.
	topicA := "alpha beta gamma delta run. "
	topicB := "omega sigma theta kappa end. "
	text := strings.TrimRight(strings.Repeat(topicA, 4)+strings.Repeat(topicB, 4), " ")

	// Each sentence is 28 bytes (7 tokens); 8 sentences total 56 tokens.
	c, err := New(Config{MaxTokens: 40, MinTokens: 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	chunks := c.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Text, "omega") {
		t.Errorf("split landed mid-topic, second chunk starts %q", chunks[1].Text[:20])
	}
	if got := Reassemble(chunks); got != text {
		t.Error("reassembled text differs from input")
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{strings.Repeat("a", 80), 20},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.in); got != tc.want {
			t.Errorf("EstimateTokens(%d bytes) = %d, want %d", len(tc.in), got, tc.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{MaxTokens: 100, MinTokens: 10, OverlapTokens: 5}, false},
		{"zero max", Config{}, true},
		{"min over max", Config{MaxTokens: 10, MinTokens: 20}, true},
		{"overlap at max", Config{MaxTokens: 10, OverlapTokens: 10}, true},
		{"negative overlap", Config{MaxTokens: 10, OverlapTokens: -1}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
