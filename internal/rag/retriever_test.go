package rag

import (
	"context"
	"testing"
	"time"
)

// fixedEmbedder returns the same vector for every input.
type fixedEmbedder struct {
	vec []float32
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func seedStore(t *testing.T, entries []IndexEntry) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	if err := store.Upsert(context.Background(), entries); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}
	return store
}

func TestRetrieve_DeduplicatesOverlappingChunks(t *testing.T) {
	t.Parallel()

	// Chunk c1 repeats overlap text from c0, so only the best of the pair
	// should survive. Ordinal 5 is far enough away to count as a separate
	// region.
	store := seedStore(t, []IndexEntry{
		{ChunkID: "c0", DocumentID: "d1", Ordinal: 0, Vector: []float32{1, 0}},
		{ChunkID: "c1", DocumentID: "d1", Ordinal: 1, OverlapLen: 24, Vector: []float32{0.95, 0.05}},
		{ChunkID: "c5", DocumentID: "d1", Ordinal: 5, OverlapLen: 24, Vector: []float32{0.8, 0.2}},
		{ChunkID: "x0", DocumentID: "d2", Ordinal: 0, Vector: []float32{0.9, 0.1}},
	})

	r, err := NewRetriever(&fixedEmbedder{vec: []float32{1, 0}}, store, RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "q", Filter{}, 4)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}

	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.Entry.ChunkID
	}
	want := []string{"c0", "x0", "c5"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestRetrieve_KeepsDisjointNeighbors(t *testing.T) {
	t.Parallel()

	// Chunks cut without overlap share no text; adjacent ordinals must not
	// be collapsed into one region.
	store := seedStore(t, []IndexEntry{
		{ChunkID: "a", DocumentID: "d1", Ordinal: 0, Vector: []float32{1, 0}},
		{ChunkID: "b", DocumentID: "d1", Ordinal: 1, Vector: []float32{0.95, 0.05}},
		{ChunkID: "c", DocumentID: "d1", Ordinal: 5, Vector: []float32{0.9, 0.1}},
	})

	r, err := NewRetriever(&fixedEmbedder{vec: []float32{1, 0}}, store, RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "q", Filter{}, 3)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 3 {
		ids := make([]string, len(results))
		for i, res := range results {
			ids[i] = res.Entry.ChunkID
		}
		t.Fatalf("got %v, want all three disjoint chunks", ids)
	}
}

func TestRetrieve_DeterministicTieBreak(t *testing.T) {
	t.Parallel()

	// Identical vectors give identical scores; ordering must fall back to
	// document recency, then ordinal.
	vec := []float32{1, 0}
	store := seedStore(t, []IndexEntry{
		{ChunkID: "older", DocumentID: "d1", Ordinal: 0, DocDate: day("2025-01-01"), Vector: vec},
		{ChunkID: "newer", DocumentID: "d2", Ordinal: 7, DocDate: day("2025-06-01"), Vector: vec},
		{ChunkID: "newer-first", DocumentID: "d3", Ordinal: 2, DocDate: day("2025-06-01"), Vector: vec},
	})

	r, err := NewRetriever(&fixedEmbedder{vec: vec}, store, RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	for run := 0; run < 3; run++ {
		results, err := r.Retrieve(context.Background(), "q", Filter{}, 3)
		if err != nil {
			t.Fatalf("Retrieve failed: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("got %d results, want 3", len(results))
		}
		want := []string{"newer-first", "newer", "older"}
		for i := range want {
			if results[i].Entry.ChunkID != want[i] {
				t.Fatalf("run %d: position %d = %s, want %s",
					run, i, results[i].Entry.ChunkID, want[i])
			}
		}
	}
}

func TestRetrieve_ThresholdGivesEmptyResult(t *testing.T) {
	t.Parallel()

	store := seedStore(t, []IndexEntry{
		{ChunkID: "far", DocumentID: "d1", Vector: []float32{0, 1}},
	})

	r, err := NewRetriever(&fixedEmbedder{vec: []float32{1, 0}}, store, RetrieverConfig{MinScore: 0.5})
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "q", Filter{}, 5)
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestRetrieve_RecencyBoostReorders(t *testing.T) {
	t.Parallel()

	now := day("2025-09-01")
	store := seedStore(t, []IndexEntry{
		// Slightly better similarity, two years old.
		{ChunkID: "stale", DocumentID: "d1", DocDate: day("2023-09-01"), Vector: []float32{1, 0.01}},
		// Slightly worse similarity, one week old.
		{ChunkID: "fresh", DocumentID: "d2", DocDate: day("2025-08-25"), Vector: []float32{1, 0.05}},
	})

	cfg := RetrieverConfig{
		RecencyWeight:   0.1,
		RecencyHalfLife: 90 * 24 * time.Hour,
		Now:             func() time.Time { return now },
	}
	r, err := NewRetriever(&fixedEmbedder{vec: []float32{1, 0}}, store, cfg)
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "q", Filter{}, 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Entry.ChunkID != "fresh" {
		t.Errorf("recency boost did not promote the fresh document: top = %s",
			results[0].Entry.ChunkID)
	}
}

func TestRetrieve_KeywordBoostReorders(t *testing.T) {
	t.Parallel()

	store := seedStore(t, []IndexEntry{
		// Slightly better similarity, no query terms in the text.
		{ChunkID: "vague", DocumentID: "d1", Text: "general staffing notes", Vector: []float32{1, 0.01}},
		// Slightly worse similarity, both query terms present.
		{ChunkID: "exact", DocumentID: "d2", Text: "the Vacation Policy applies to all employees", Vector: []float32{1, 0.05}},
	})

	r, err := NewRetriever(&fixedEmbedder{vec: []float32{1, 0}}, store, RetrieverConfig{KeywordWeight: 0.1})
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "vacation policy", Filter{}, 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Entry.ChunkID != "exact" {
		t.Errorf("keyword boost did not promote the lexical match: top = %s",
			results[0].Entry.ChunkID)
	}
}

func TestQueryTerms(t *testing.T) {
	t.Parallel()

	got := queryTerms("What is the Vacation, vacation POLICY?")
	want := []string{"what", "is", "the", "vacation", "policy"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRetrieve_FilterPassesThrough(t *testing.T) {
	t.Parallel()

	vec := []float32{1, 0}
	store := seedStore(t, []IndexEntry{
		{ChunkID: "in", DocumentID: "d1", DocDate: day("2025-08-10"), Vector: vec},
		{ChunkID: "out", DocumentID: "d2", DocDate: day("2025-06-10"), Vector: vec},
	})

	r, err := NewRetriever(&fixedEmbedder{vec: vec}, store, RetrieverConfig{})
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	f := Filter{DateFrom: day("2025-08-01"), DateTo: day("2025-08-31")}
	results, err := r.Retrieve(context.Background(), "q", f, 5)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(results) != 1 || results[0].Entry.ChunkID != "in" {
		t.Errorf("filter not applied, got %+v", results)
	}
}
