// Package rag defines the retrieval core: vector storage, query-time
// retrieval, and embedding. Concrete implementations (Qdrant, in-memory)
// satisfy these interfaces so the ingestion pipeline and the query API never
// depend on a specific backend.
package rag

import (
	"context"
	"fmt"
	"time"
)

// IndexEntry is one indexed chunk: its text, provenance metadata, and the
// embedding vector. It is the unit of storage and the unit of retrieval.
type IndexEntry struct {
	// ChunkID is the unique identifier for this chunk (UUID).
	ChunkID string

	// DocumentID identifies the source document this chunk came from.
	DocumentID string

	// Ordinal is the chunk's zero-based position within its document.
	Ordinal int

	// Text is the chunk text in logical reading order, overlap included.
	Text string

	// Tokens is the estimated token length of Text.
	Tokens int

	// OverlapLen is the byte length of the prefix repeated from the
	// previous chunk, zero for the first chunk of a document.
	OverlapLen int

	// HardSplit marks a chunk cut at the length limit rather than at a
	// sentence boundary.
	HardSplit bool

	// Language is the BCP-47 primary subtag of the chunk text ("he", "ar",
	// "en"), empty when undetected.
	Language string

	// Title is the human-readable document title.
	Title string

	// Locator names the chunk's position in the source document,
	// e.g. "page 3" or "row 12".
	Locator string

	// DocDate is the document's effective date used for date filtering and
	// recency ranking. Zero when the document carries no date.
	DocDate time.Time

	// Vector is the embedding of Text.
	Vector []float32
}

// Filter is a conjunction of metadata predicates applied during search.
// Zero-valued fields are unbounded.
type Filter struct {
	// DocumentIDs restricts results to the given documents when non-empty.
	DocumentIDs []string

	// Language restricts results to chunks with this language tag.
	Language string

	// DateFrom and DateTo bound the document date, inclusive on both ends.
	DateFrom time.Time
	DateTo   time.Time
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return len(f.DocumentIDs) == 0 && f.Language == "" && f.DateFrom.IsZero() && f.DateTo.IsZero()
}

// Scored is a search hit: the stored entry plus its similarity score.
type Scored struct {
	Entry IndexEntry
	Score float32
}

// StoreOp distinguishes the failing side of a store operation.
type StoreOp string

const (
	StoreOpWrite StoreOp = "write"
	StoreOpQuery StoreOp = "query"
)

// StoreError wraps a backing-store failure with the operation that failed.
// Write failures abort the owning document's commit; query failures surface
// to the caller with no partial results.
type StoreError struct {
	Op  StoreOp
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// VectorStore persists index entries and serves filtered nearest-neighbor
// queries. Implementations must be safe for concurrent use; Upsert must be
// atomic per entry so a query never observes a chunk without its vector.
type VectorStore interface {
	// Upsert stores or replaces entries. Each entry must carry its Vector.
	Upsert(ctx context.Context, entries []IndexEntry) error

	// Delete removes entries by chunk ID.
	Delete(ctx context.Context, chunkIDs []string) error

	// DeleteByDocument removes every entry belonging to the document.
	// Relative to that document the removal is all-or-nothing as far as
	// subsequent queries can observe.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Query returns the topK nearest entries to vector that satisfy the
	// filter, ordered by descending similarity.
	Query(ctx context.Context, vector []float32, topK int, f Filter) ([]Scored, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings. Implementations must
// be safe to call from multiple goroutines. The returned slice is parallel
// to the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
