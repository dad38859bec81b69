package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cambium-dev/docqa-go/internal/catalog"
	"github.com/cambium-dev/docqa-go/internal/chunker"
	"github.com/cambium-dev/docqa-go/internal/embedder"
	"github.com/cambium-dev/docqa-go/internal/rag"
)

// fakeEmbedder returns a fixed-dimension vector per text, rejecting any text
// containing "reject-me" with a terminal per-item error.
type fakeEmbedder struct{}

func (f *fakeEmbedder) EmbedAll(_ context.Context, texts []string) ([]embedder.Result, error) {
	out := make([]embedder.Result, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "reject-me") {
			out[i] = embedder.Result{Err: errors.New("input rejected")}
			continue
		}
		out[i] = embedder.Result{Vector: []float32{float32(len(t)), 1}}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testConfig() Config {
	return Config{Chunk: chunker.Config{MaxTokens: 100, MinTokens: 5}}
}

func newTestPipeline(t *testing.T, store rag.VectorStore) (*Pipeline, *catalog.Store) {
	t.Helper()
	cat, err := catalog.Open(":memory:")
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = cat.Close() })

	p, err := NewPipeline(&fakeEmbedder{}, store, cat, testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p, cat
}

func csvPayload(rows int) []byte {
	var b strings.Builder
	b.WriteString("name,notes\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "item%d,description of entry number %d\n", i, i)
	}
	return []byte(b.String())
}

func TestIngest_CSVDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := rag.NewMemoryStore()
	p, cat := newTestPipeline(t, store)

	md := Metadata{Title: "inventory.csv", DocDate: time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)}
	docID, err := p.Ingest(ctx, csvPayload(3), "text/csv", md)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if docID == "" {
		t.Fatal("empty document ID")
	}

	if store.Len() == 0 {
		t.Fatal("no entries written to the vector store")
	}
	hits, err := store.Query(ctx, []float32{1, 1}, 10, rag.Filter{DocumentIDs: []string{docID}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, h := range hits {
		e := h.Entry
		if e.Title != "inventory.csv" {
			t.Errorf("entry title = %q", e.Title)
		}
		if !strings.HasPrefix(e.Locator, "row ") {
			t.Errorf("entry locator = %q, want a row locator", e.Locator)
		}
		if !e.DocDate.Equal(md.DocDate) {
			t.Errorf("entry date = %s", e.DocDate)
		}
	}

	doc, err := cat.Get(ctx, docID)
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}
	if doc.Status != catalog.StatusActive || doc.Chunks != store.Len() {
		t.Errorf("catalog row = %+v", doc)
	}
}

func TestIngest_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	store := rag.NewMemoryStore()
	p, _ := newTestPipeline(t, store)

	_, err := p.Ingest(context.Background(), []byte("hello"), "image/png", Metadata{})
	var ie *IngestionError
	if !errors.As(err, &ie) || ie.Stage != StageExtract {
		t.Fatalf("got %v, want extract-stage IngestionError", err)
	}
}

func TestIngest_EmptyDocument(t *testing.T) {
	t.Parallel()
	store := rag.NewMemoryStore()
	p, _ := newTestPipeline(t, store)

	// Header-only CSV extracts no segments.
	_, err := p.Ingest(context.Background(), []byte("name,notes\n"), "text/csv", Metadata{})
	var ie *IngestionError
	if !errors.As(err, &ie) || ie.Stage != StageExtract {
		t.Fatalf("got %v, want extract-stage IngestionError", err)
	}
}

func TestIngest_EmbeddingRejectionNamesChunks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := rag.NewMemoryStore()
	p, _ := newTestPipeline(t, store)

	payload := []byte("name,notes\nbad,reject-me please\n")
	_, err := p.Ingest(ctx, payload, "text/csv", Metadata{Title: "bad.csv"})
	var ie *IngestionError
	if !errors.As(err, &ie) {
		t.Fatalf("got %v, want IngestionError", err)
	}
	if ie.Stage != StageEmbed {
		t.Errorf("stage = %s, want embed", ie.Stage)
	}
	if len(ie.FailedChunks) == 0 {
		t.Error("failed chunk indices missing")
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d entries after failed ingestion, want 0", store.Len())
	}
}

func TestIngest_IdenticalPayloadSkipsReindex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := rag.NewMemoryStore()
	p, _ := newTestPipeline(t, store)

	payload := csvPayload(2)
	first, err := p.Ingest(ctx, payload, "text/csv", Metadata{Title: "a.csv"})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	before := store.Len()

	second, err := p.Ingest(ctx, payload, "text/csv", Metadata{Title: "a.csv"})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if second != first {
		t.Errorf("re-ingestion returned %s, want existing %s", second, first)
	}
	if store.Len() != before {
		t.Errorf("store grew from %d to %d on identical payload", before, store.Len())
	}
}

func TestIngest_SupersedesPreviousRevision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := rag.NewMemoryStore()
	p, cat := newTestPipeline(t, store)

	oldID, err := p.Ingest(ctx, csvPayload(2), "text/csv", Metadata{Title: "handbook.csv"})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	newID, err := p.Ingest(ctx, csvPayload(4), "text/csv", Metadata{Title: "handbook.csv"})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	hits, err := store.Query(ctx, []float32{1, 1}, 50, rag.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	for _, h := range hits {
		if h.Entry.DocumentID == oldID {
			t.Errorf("superseded document's chunk still indexed: %s", h.Entry.ChunkID)
		}
	}

	oldDoc, err := cat.Get(ctx, oldID)
	if err != nil {
		t.Fatalf("catalog get old: %v", err)
	}
	if oldDoc.Status != catalog.StatusSuperseded {
		t.Errorf("old status = %s, want superseded", oldDoc.Status)
	}
	newDoc, err := cat.Get(ctx, newID)
	if err != nil {
		t.Fatalf("catalog get new: %v", err)
	}
	if newDoc.Status != catalog.StatusActive {
		t.Errorf("new status = %s, want active", newDoc.Status)
	}
}

// failingStore wraps MemoryStore and fails every upsert.
type failingStore struct {
	*rag.MemoryStore
}

func (f *failingStore) Upsert(context.Context, []rag.IndexEntry) error {
	return &rag.StoreError{Op: rag.StoreOpWrite, Err: errors.New("disk full")}
}

func TestIngest_StoreFailureSurfaces(t *testing.T) {
	t.Parallel()
	store := &failingStore{MemoryStore: rag.NewMemoryStore()}
	p, _ := newTestPipeline(t, store)

	_, err := p.Ingest(context.Background(), csvPayload(2), "text/csv", Metadata{Title: "x.csv"})
	var ie *IngestionError
	if !errors.As(err, &ie) || ie.Stage != StageStore {
		t.Fatalf("got %v, want store-stage IngestionError", err)
	}
}

// stickyStore wraps MemoryStore and refuses to delete one document's chunks.
type stickyStore struct {
	*rag.MemoryStore
	stuckID string
}

func (s *stickyStore) DeleteByDocument(ctx context.Context, docID string) error {
	if docID == s.stuckID {
		return &rag.StoreError{Op: rag.StoreOpWrite, Err: errors.New("connection reset")}
	}
	return s.MemoryStore.DeleteByDocument(ctx, docID)
}

func TestIngest_SupersedeSurvivesChunkRemovalFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &stickyStore{MemoryStore: rag.NewMemoryStore()}
	p, cat := newTestPipeline(t, store)

	oldID, err := p.Ingest(ctx, csvPayload(2), "text/csv", Metadata{Title: "handbook.csv"})
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	store.stuckID = oldID

	newID, err := p.Ingest(ctx, csvPayload(4), "text/csv", Metadata{Title: "handbook.csv"})
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	// The predecessor's status must flip even though its chunks could not
	// be removed; stale vectors are tolerable, an active catalog row with a
	// missing index is not.
	oldDoc, err := cat.Get(ctx, oldID)
	if err != nil {
		t.Fatalf("catalog get old: %v", err)
	}
	if oldDoc.Status != catalog.StatusSuperseded {
		t.Errorf("old status = %s, want superseded", oldDoc.Status)
	}
	newDoc, err := cat.Get(ctx, newID)
	if err != nil {
		t.Fatalf("catalog get new: %v", err)
	}
	if newDoc.Status != catalog.StatusActive {
		t.Errorf("new status = %s, want active", newDoc.Status)
	}
}

func TestDelete_RemovesChunksAndCatalogRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := rag.NewMemoryStore()
	p, cat := newTestPipeline(t, store)

	docID, err := p.Ingest(ctx, csvPayload(2), "text/csv", Metadata{Title: "gone.csv"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if err := p.Delete(ctx, docID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("store still holds %d entries", store.Len())
	}
	if _, err := cat.Get(ctx, docID); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("catalog row survived delete: %v", err)
	}
}
