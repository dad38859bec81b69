// Package ingest implements the document ingestion pipeline: extract text
// from the uploaded payload, normalize its script, chunk it, embed the
// chunks, and commit them to the vector store. A document commits at
// document granularity — on any failure past the embedding stage the
// pipeline rolls back everything it wrote, so a caller retrying a failed
// ingestion never races a half-indexed document.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cambium-dev/docqa-go/internal/bidi"
	"github.com/cambium-dev/docqa-go/internal/catalog"
	"github.com/cambium-dev/docqa-go/internal/chunker"
	"github.com/cambium-dev/docqa-go/internal/embedder"
	"github.com/cambium-dev/docqa-go/internal/extract"
	"github.com/cambium-dev/docqa-go/internal/rag"
)

// Stage names the pipeline stage a failure occurred in.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
	StageChunk     Stage = "chunk"
	StageEmbed     Stage = "embed"
	StageStore     Stage = "store"
	StageCatalog   Stage = "catalog"
)

// IngestionError is an ingestion failure pinned to its stage. FailedChunks
// carries the indices of chunks the embedding backend terminally rejected,
// so a caller can re-submit just those.
type IngestionError struct {
	Stage        Stage
	DocumentID   string
	FailedChunks []int
	Err          error
}

func (e *IngestionError) Error() string {
	if len(e.FailedChunks) > 0 {
		return fmt.Sprintf("ingest: %s stage failed for chunks %v: %v", e.Stage, e.FailedChunks, e.Err)
	}
	return fmt.Sprintf("ingest: %s stage failed: %v", e.Stage, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Metadata is caller-supplied document metadata.
type Metadata struct {
	// Title is the human-readable document name (typically the filename).
	Title string

	// Language is an optional BCP-47 primary subtag hint; empty means
	// detect from the text.
	Language string

	// DocDate is the document's effective date, zero if undated.
	DocDate time.Time
}

// Config tunes the pipeline.
type Config struct {
	// Chunk bounds chunk sizes.
	Chunk chunker.Config

	// DocTimeout caps one document's end-to-end ingestion. A timeout is a
	// retryable failure: the document is rolled back and safe to re-run.
	// Defaults to 5 minutes.
	DocTimeout time.Duration
}

// BatchEmbedder is the embedding layer the pipeline drives: per-item
// results, batching and retry behind it. *embedder.Batcher implements it.
type BatchEmbedder interface {
	EmbedAll(ctx context.Context, texts []string) ([]embedder.Result, error)
}

// Pipeline orchestrates extract → normalize → chunk → embed → upsert.
// Safe for concurrent use; documents ingest independently.
type Pipeline struct {
	normalizer *bidi.Normalizer
	chunker    *chunker.Chunker
	embedder   BatchEmbedder
	store      rag.VectorStore
	catalog    *catalog.Store // optional; nil disables the registry
	cfg        Config
	log        *slog.Logger
}

// NewPipeline constructs a Pipeline. The catalog may be nil.
func NewPipeline(be BatchEmbedder, store rag.VectorStore, cat *catalog.Store, cfg Config, log *slog.Logger) (*Pipeline, error) {
	if be == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	if cfg.DocTimeout <= 0 {
		cfg.DocTimeout = 5 * time.Minute
	}
	ch, err := chunker.New(cfg.Chunk)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		normalizer: &bidi.Normalizer{},
		chunker:    ch,
		embedder:   be,
		store:      store,
		catalog:    cat,
		cfg:        cfg,
		log:        log,
	}, nil
}

// Ingest runs one document through the pipeline and returns its document ID.
// Re-ingesting byte-identical content returns the existing document's ID
// without re-indexing; re-ingesting a changed document under the same title
// supersedes the predecessor.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, mimeType string, md Metadata) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.DocTimeout)
	defer cancel()

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	if p.catalog != nil {
		existing, err := p.catalog.FindActiveByChecksum(ctx, checksum)
		switch {
		case err == nil:
			p.log.Info("payload already indexed, skipping",
				slog.String("document_id", existing.ID),
				slog.String("title", md.Title))
			return existing.ID, nil
		case !errors.Is(err, catalog.ErrNotFound):
			return "", &IngestionError{Stage: StageCatalog, Err: err}
		}
	}

	segments, err := extract.Extract(data, mimeType)
	if err != nil {
		return "", &IngestionError{Stage: StageExtract, Err: err}
	}

	text, locators, err := p.normalize(segments, md.Language)
	if err != nil {
		return "", &IngestionError{Stage: StageNormalize, Err: err}
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return "", &IngestionError{Stage: StageChunk, Err: extract.ErrEmptyDocument}
	}

	language := md.Language
	if language == "" {
		language = bidi.DetectLanguage(text)
	}

	docID := uuid.NewString()
	entries, failed, err := p.embed(ctx, docID, chunks, locators, md, language)
	if err != nil {
		return "", err
	}
	if len(failed) > 0 {
		return "", &IngestionError{
			Stage:        StageEmbed,
			DocumentID:   docID,
			FailedChunks: failed,
			Err:          fmt.Errorf("%d of %d chunks rejected", len(failed), len(chunks)),
		}
	}

	if err := p.store.Upsert(ctx, entries); err != nil {
		p.rollback(docID)
		return "", &IngestionError{Stage: StageStore, DocumentID: docID, Err: err}
	}

	if p.catalog != nil {
		if err := p.commitCatalog(ctx, docID, md, mimeType, checksum, language, len(entries)); err != nil {
			p.rollback(docID)
			return "", &IngestionError{Stage: StageCatalog, DocumentID: docID, Err: err}
		}
	}

	p.log.Info("document ingested",
		slog.String("document_id", docID),
		slog.String("title", md.Title),
		slog.Int("chunks", len(entries)),
		slog.String("language", language))
	return docID, nil
}

// normalize converts extracted segments to logical-order text, joined with
// paragraph breaks, and returns the locator table used to map chunk offsets
// back to pages and rows.
func (p *Pipeline) normalize(segments []extract.Segment, langHint string) (string, *locatorTable, error) {
	var (
		buf     []byte
		table   locatorTable
		warned  bool
		badHint error
	)
	for i, seg := range segments {
		hint := langHint
		if hint == "" {
			hint = seg.LangHint
		}
		res, err := p.normalizer.Normalize(seg.Text, hint, seg.VisualOrder)
		if err != nil {
			badHint = fmt.Errorf("segment %s: %w", seg.Loc, err)
			break
		}
		if res.Warned {
			warned = true
		}
		if i > 0 {
			buf = append(buf, "\n\n"...)
		}
		table.add(len(buf), seg.Loc.String())
		buf = append(buf, res.Text...)
	}
	if badHint != nil {
		return "", nil, badHint
	}
	if warned {
		p.log.Warn("unidentified script passed through without reordering")
	}
	return string(buf), &table, nil
}

// embed runs the chunk texts through the embedding layer and assembles
// index entries. The returned failed slice holds chunk indices the backend
// terminally rejected.
func (p *Pipeline) embed(ctx context.Context, docID string, chunks []chunker.Chunk, locators *locatorTable, md Metadata, language string) ([]rag.IndexEntry, []int, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	results, err := p.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, nil, &IngestionError{Stage: StageEmbed, DocumentID: docID, Err: err}
	}

	var failed []int
	entries := make([]rag.IndexEntry, 0, len(chunks))
	for i, res := range results {
		if res.Err != nil {
			failed = append(failed, i)
			p.log.Warn("chunk rejected by embedding backend",
				slog.String("document_id", docID),
				slog.Int("chunk", i),
				slog.String("error", res.Err.Error()))
			continue
		}
		c := chunks[i]
		entries = append(entries, rag.IndexEntry{
			ChunkID:    uuid.NewString(),
			DocumentID: docID,
			Ordinal:    c.Ordinal,
			Text:       c.Text,
			Tokens:     c.Tokens,
			OverlapLen: c.OverlapLen,
			HardSplit:  c.HardSplit,
			Language:   language,
			Title:      md.Title,
			Locator:    locators.at(c.Offset),
			DocDate:    md.DocDate,
		})
	}
	return entries, failed, nil
}

// commitCatalog supersedes any active predecessor sharing the title, then
// records the new document.
func (p *Pipeline) commitCatalog(ctx context.Context, docID string, md Metadata, mimeType, checksum, language string, chunks int) error {
	if md.Title != "" {
		prev, err := p.catalog.FindActiveByTitle(ctx, md.Title)
		if err != nil {
			return err
		}
		for _, old := range prev {
			// Status first: if chunk removal then fails, the stale vectors
			// linger but the catalog never shows an active document whose
			// index entries are gone.
			if err := p.catalog.MarkSuperseded(ctx, old.ID); err != nil {
				return err
			}
			if err := p.store.DeleteByDocument(ctx, old.ID); err != nil {
				p.log.Warn("failed to remove superseded document's chunks",
					slog.String("document_id", old.ID),
					slog.String("error", err.Error()))
				continue
			}
			p.log.Info("superseded previous revision",
				slog.String("document_id", old.ID),
				slog.String("title", md.Title))
		}
	}

	return p.catalog.Record(ctx, catalog.Document{
		ID:       docID,
		Title:    md.Title,
		MimeType: mimeType,
		Checksum: checksum,
		Language: language,
		DocDate:  md.DocDate,
		Chunks:   chunks,
		Status:   catalog.StatusActive,
	})
}

// rollback removes anything written for the document. It runs on a fresh
// context so a cancelled ingestion can still clean up after itself.
func (p *Pipeline) rollback(docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.store.DeleteByDocument(ctx, docID); err != nil {
		p.log.Error("rollback failed, document may be partially indexed",
			slog.String("document_id", docID),
			slog.String("error", err.Error()))
	}
}

// Delete removes a document's chunks from the vector store and its catalog
// row, in that order.
func (p *Pipeline) Delete(ctx context.Context, docID string) error {
	if err := p.store.DeleteByDocument(ctx, docID); err != nil {
		return &IngestionError{Stage: StageStore, DocumentID: docID, Err: err}
	}
	if p.catalog != nil {
		if err := p.catalog.Delete(ctx, docID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return &IngestionError{Stage: StageCatalog, DocumentID: docID, Err: err}
		}
	}
	return nil
}

// locatorTable maps byte offsets in the joined normalized text back to the
// source locator of the segment that starts there.
type locatorTable struct {
	starts []int
	locs   []string
}

func (t *locatorTable) add(start int, loc string) {
	t.starts = append(t.starts, start)
	t.locs = append(t.locs, loc)
}

// at returns the locator of the segment containing the offset.
func (t *locatorTable) at(offset int) string {
	if t == nil || len(t.starts) == 0 {
		return ""
	}
	i := 0
	for i+1 < len(t.starts) && t.starts[i+1] <= offset {
		i++
	}
	return t.locs[i]
}
