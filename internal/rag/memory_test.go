package rag

import (
	"context"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMemoryStore_SelfMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	vec := []float32{0.3, 0.5, 0.2}
	err := store.Upsert(ctx, []IndexEntry{
		{ChunkID: "c1", DocumentID: "d1", Text: "hello", Vector: vec},
		{ChunkID: "c2", DocumentID: "d1", Text: "other", Vector: []float32{-0.5, 0.1, 0.9}},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	hits, err := store.Query(ctx, vec, 2, Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Entry.ChunkID != "c1" {
		t.Errorf("top hit = %s, want c1", hits[0].Entry.ChunkID)
	}
	if hits[0].Score < 0.9999 || hits[0].Score > 1.0001 {
		t.Errorf("self-match score = %f, want ~1", hits[0].Score)
	}
}

func TestMemoryStore_DeleteByDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	vec := []float32{1, 0}
	entries := []IndexEntry{
		{ChunkID: "a0", DocumentID: "docA", Vector: vec},
		{ChunkID: "a1", DocumentID: "docA", Vector: vec},
		{ChunkID: "b0", DocumentID: "docB", Vector: vec},
	}
	if err := store.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := store.DeleteByDocument(ctx, "docA"); err != nil {
		t.Fatalf("DeleteByDocument failed: %v", err)
	}

	hits, err := store.Query(ctx, vec, 10, Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, h := range hits {
		if h.Entry.DocumentID == "docA" {
			t.Errorf("deleted document still returned: %s", h.Entry.ChunkID)
		}
	}
	if len(hits) != 1 || hits[0].Entry.ChunkID != "b0" {
		t.Errorf("unexpected surviving hits: %+v", hits)
	}
}

func TestMemoryStore_DateFilterBeatsSimilarity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	query := []float32{1, 0}
	entries := []IndexEntry{
		// Perfect match but outside the date range.
		{ChunkID: "old", DocumentID: "d1", DocDate: day("2025-06-10"), Vector: []float32{1, 0}},
		// Weaker match inside the range.
		{ChunkID: "recent", DocumentID: "d2", DocDate: day("2025-08-15"), Vector: []float32{0.7, 0.7}},
		// Undated entries never match a date filter.
		{ChunkID: "undated", DocumentID: "d3", Vector: []float32{1, 0}},
	}
	if err := store.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	f := Filter{DateFrom: day("2025-08-01"), DateTo: day("2025-08-31")}
	hits, err := store.Query(ctx, query, 10, f)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Entry.ChunkID != "recent" {
		t.Errorf("hit = %s, want recent", hits[0].Entry.ChunkID)
	}
}

func TestMemoryStore_ConjunctiveFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	vec := []float32{1, 0}
	entries := []IndexEntry{
		{ChunkID: "c1", DocumentID: "d1", Language: "he", DocDate: day("2025-08-10"), Vector: vec},
		{ChunkID: "c2", DocumentID: "d1", Language: "en", DocDate: day("2025-08-10"), Vector: vec},
		{ChunkID: "c3", DocumentID: "d2", Language: "he", DocDate: day("2025-08-10"), Vector: vec},
	}
	if err := store.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	f := Filter{DocumentIDs: []string{"d1"}, Language: "he"}
	hits, err := store.Query(ctx, vec, 10, f)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Entry.ChunkID != "c1" {
		t.Errorf("conjunctive filter returned %+v, want only c1", hits)
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		got := Cosine(tc.a, tc.b)
		if got < tc.want-0.0001 || got > tc.want+0.0001 {
			t.Errorf("%s: Cosine = %f, want %f", tc.name, got, tc.want)
		}
	}
}
