package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force in-memory VectorStore. It scans every entry
// on each query, which is fine for tests and small corpora but degrades
// linearly with corpus size; production deployments use QdrantStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]IndexEntry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]IndexEntry)}
}

// Upsert stores or replaces entries keyed by chunk ID.
func (s *MemoryStore) Upsert(_ context.Context, entries []IndexEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.ChunkID == "" {
			return &StoreError{Op: StoreOpWrite, Err: fmt.Errorf("memory: entry missing chunk id")}
		}
		s.entries[e.ChunkID] = e
	}
	return nil
}

// Delete removes entries by chunk ID. Missing IDs are ignored.
func (s *MemoryStore) Delete(_ context.Context, chunkIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range chunkIDs {
		delete(s.entries, id)
	}
	return nil
}

// DeleteByDocument removes every entry of the document under one lock
// acquisition, so no query interleaves with a half-removed document.
func (s *MemoryStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.DocumentID == documentID {
			delete(s.entries, id)
		}
	}
	return nil
}

// Query scans all entries, applies the filter, and returns the topK nearest
// by cosine similarity. Ties are broken by chunk ID for deterministic output.
func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int, f Filter) ([]Scored, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []Scored
	for _, e := range s.entries {
		if !matches(e, f) {
			continue
		}
		hits = append(hits, Scored{Entry: e, Score: Cosine(vector, e.Vector)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Entry.ChunkID < hits[j].Entry.ChunkID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func matches(e IndexEntry, f Filter) bool {
	if len(f.DocumentIDs) > 0 {
		found := false
		for _, id := range f.DocumentIDs {
			if e.DocumentID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Language != "" && e.Language != f.Language {
		return false
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		if e.DocDate.IsZero() {
			return false
		}
		if !f.DateFrom.IsZero() && e.DocDate.Before(f.DateFrom) {
			return false
		}
		if !f.DateTo.IsZero() && e.DocDate.After(f.DateTo) {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of two vectors, zero when either has
// zero magnitude or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
