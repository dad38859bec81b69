// Package catalog provides a SQLite-backed registry of ingested documents.
// The vector store holds the chunks; the catalog holds one row per document
// (title, checksum, chunk count, status) so the management API can list and
// delete documents without scanning the vector collection, and re-ingesting
// an updated file can supersede its predecessor.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Status tracks a document's lifecycle in the index.
type Status string

const (
	// StatusActive marks a document whose chunks are live in the index.
	StatusActive Status = "active"
	// StatusSuperseded marks a document replaced by a newer ingestion.
	StatusSuperseded Status = "superseded"
)

// ErrNotFound is returned when a document ID has no catalog row.
var ErrNotFound = errors.New("catalog: document not found")

// Document is one catalog row.
type Document struct {
	// ID is the document's UUID, shared with its chunks in the vector store.
	ID string
	// Title is the human-readable document name.
	Title string
	// MimeType is the ingested payload's MIME type.
	MimeType string
	// Checksum is the SHA-256 hex digest of the raw payload.
	Checksum string
	// Language is the document's primary language subtag, empty if unknown.
	Language string
	// DocDate is the document's effective date, zero if undated.
	DocDate time.Time
	// Chunks is the number of chunks indexed for this document.
	Chunks int
	// Status is the lifecycle state.
	Status Status
	// IngestedAt is when the document was committed.
	IngestedAt time.Time
}

// Store is a document registry backed by a local SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the catalog database.
// It resolves to ~/.docqa/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("catalog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("catalog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a Store at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id           TEXT    PRIMARY KEY,
    title        TEXT    NOT NULL,
    mime_type    TEXT    NOT NULL,
    checksum     TEXT    NOT NULL,
    language     TEXT    NOT NULL DEFAULT '',
    doc_date     INTEGER,          -- Unix timestamp (seconds), NULL if undated
    chunks       INTEGER NOT NULL,
    status       TEXT    NOT NULL CHECK(status IN ('active','superseded')),
    ingested_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_documents_checksum ON documents (checksum, status);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents (status, ingested_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Record inserts a new active document row.
func (s *Store) Record(ctx context.Context, d Document) error {
	const q = `
INSERT INTO documents (id, title, mime_type, checksum, language, doc_date, chunks, status, ingested_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var docDate interface{}
	if !d.DocDate.IsZero() {
		docDate = d.DocDate.Unix()
	}
	ingested := d.IngestedAt
	if ingested.IsZero() {
		ingested = time.Now()
	}
	status := d.Status
	if status == "" {
		status = StatusActive
	}
	_, err := s.db.ExecContext(ctx, q,
		d.ID, d.Title, d.MimeType, d.Checksum, d.Language, docDate, d.Chunks, string(status), ingested.Unix())
	if err != nil {
		return fmt.Errorf("catalog: record: %w", err)
	}
	return nil
}

// Get returns the document row for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	const q = `
SELECT id, title, mime_type, checksum, language, doc_date, chunks, status, ingested_at
FROM   documents WHERE id = ?`
	d, err := scanDocument(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("catalog: get: %w", err)
	}
	return d, nil
}

// List returns all documents, newest first. When activeOnly is set,
// superseded rows are skipped.
func (s *Store) List(ctx context.Context, activeOnly bool) ([]Document, error) {
	q := `
SELECT id, title, mime_type, checksum, language, doc_date, chunks, status, ingested_at
FROM   documents`
	if activeOnly {
		q += ` WHERE status = 'active'`
	}
	q += ` ORDER BY ingested_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: list scan: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list rows: %w", err)
	}
	return docs, nil
}

// FindActiveByChecksum returns the active document with the given payload
// checksum, or ErrNotFound. Used to detect re-ingestion of identical bytes.
func (s *Store) FindActiveByChecksum(ctx context.Context, checksum string) (Document, error) {
	const q = `
SELECT id, title, mime_type, checksum, language, doc_date, chunks, status, ingested_at
FROM   documents WHERE checksum = ? AND status = 'active'
ORDER  BY ingested_at DESC LIMIT 1`
	d, err := scanDocument(s.db.QueryRowContext(ctx, q, checksum))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("catalog: find by checksum: %w", err)
	}
	return d, nil
}

// FindActiveByTitle returns active documents sharing a title, used to
// supersede predecessors when an updated revision is ingested.
func (s *Store) FindActiveByTitle(ctx context.Context, title string) ([]Document, error) {
	const q = `
SELECT id, title, mime_type, checksum, language, doc_date, chunks, status, ingested_at
FROM   documents WHERE title = ? AND status = 'active'
ORDER  BY ingested_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, title)
	if err != nil {
		return nil, fmt.Errorf("catalog: find by title: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: find by title scan: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: find by title rows: %w", err)
	}
	return docs, nil
}

// MarkSuperseded flips a document to superseded status.
func (s *Store) MarkSuperseded(ctx context.Context, id string) error {
	const q = `UPDATE documents SET status = 'superseded' WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("catalog: mark superseded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document row.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping verifies the database connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("catalog: close: %w", err)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(r rowScanner) (Document, error) {
	var d Document
	var docDate sql.NullInt64
	var status string
	var ingested int64
	err := r.Scan(&d.ID, &d.Title, &d.MimeType, &d.Checksum, &d.Language, &docDate, &d.Chunks, &status, &ingested)
	if err != nil {
		return Document{}, err
	}
	if docDate.Valid {
		d.DocDate = time.Unix(docDate.Int64, 0).UTC()
	}
	d.Status = Status(status)
	d.IngestedAt = time.Unix(ingested, 0).UTC()
	return d, nil
}
