package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cambium-dev/docqa-go/internal/catalog"
	"github.com/cambium-dev/docqa-go/internal/extract"
	"github.com/cambium-dev/docqa-go/internal/ingest"
	"github.com/cambium-dev/docqa-go/internal/logging"
	"github.com/cambium-dev/docqa-go/internal/rag"
)

// handleIngest handles POST /api/ingest. The request is a multipart form
// with a "file" part plus optional "title", "language", and "date"
// (YYYY-MM-DD) values.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading upload: %v", err))
		return
	}

	md := ingest.Metadata{
		Title:    r.FormValue("title"),
		Language: r.FormValue("language"),
	}
	if md.Title == "" {
		md.Title = header.Filename
	}
	if d := r.FormValue("date"); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		md.DocDate = t
	}

	mimeType := documentMIMEType(header.Header.Get("Content-Type"), header.Filename)

	docID, err := s.deps.Ingester.Ingest(r.Context(), data, mimeType, md)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ingestDocumentsTotal.WithLabelValues(outcome).Inc()
	s.metrics.ingestDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		status := ingestErrorStatus(err)
		log.Error("ingestion failed",
			slog.String("title", md.Title),
			slog.Int("status", status),
			slog.Any("error", err),
		)
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{DocumentID: docID})
}

// ingestErrorStatus maps an ingestion failure to an HTTP status code.
func ingestErrorStatus(err error) int {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	}
	var ie *ingest.IngestionError
	if errors.As(err, &ie) {
		switch ie.Stage {
		case ingest.StageExtract, ingest.StageNormalize, ingest.StageChunk:
			return http.StatusUnprocessableEntity
		case ingest.StageEmbed, ingest.StageStore:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// documentMIMEType resolves the MIME type of an upload, falling back from
// the declared Content-Type to the filename extension.
func documentMIMEType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	switch filepath.Ext(filename) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".csv":
		return "text/csv"
	}
	return declared
}

// handleQuery handles POST /api/query: resolve the date expression, retrieve
// matching chunks, and synthesize a cited answer unless retrieval-only mode
// was requested.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	filter := rag.Filter{
		DocumentIDs: req.DocumentIDs,
		Language:    req.Language,
	}
	var resp queryResponse
	if req.Date != "" {
		rng, err := s.calendar.Resolve(req.Date, time.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("date expression %q: %v", req.Date, err))
			return
		}
		filter.DateFrom = rng.From
		filter.DateTo = rng.To
		if !rng.From.IsZero() {
			resp.DateFrom = rng.From.Format(time.RFC3339)
		}
		if !rng.To.IsZero() {
			resp.DateTo = rng.To.Format(time.RFC3339)
		}
	}

	results, err := s.deps.Retriever.Retrieve(r.Context(), req.Question, filter, req.TopK)
	if err != nil {
		s.observeQuery("error", start)
		log.Error("retrieval failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "retrieval failed")
		return
	}

	resp.Results = make([]queryResult, 0, len(results))
	for _, res := range results {
		qr := queryResult{
			ChunkID:    res.Entry.ChunkID,
			DocumentID: res.Entry.DocumentID,
			Title:      res.Entry.Title,
			Locator:    res.Entry.Locator,
			Text:       res.Entry.Text,
			Similarity: res.Similarity,
			Score:      res.Score,
		}
		if !res.Entry.DocDate.IsZero() {
			qr.DocDate = res.Entry.DocDate.Format(time.RFC3339)
		}
		resp.Results = append(resp.Results, qr)
	}

	if !req.NoAnswer && s.deps.Synthesizer != nil {
		ans, err := s.deps.Synthesizer.Answer(r.Context(), req.Question, results)
		if err != nil {
			s.observeQuery("error", start)
			log.Error("answer synthesis failed", slog.Any("error", err))
			writeError(w, http.StatusBadGateway, "answer synthesis failed")
			return
		}
		resp.Answer = ans
	}

	s.observeQuery("ok", start)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) observeQuery(outcome string, start time.Time) {
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// handleDocuments handles GET /api/documents. By default only active
// documents are listed; ?all=true includes superseded revisions.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	activeOnly := r.URL.Query().Get("all") != "true"
	docs, err := s.deps.Catalog.List(r.Context(), activeOnly)
	if err != nil {
		log.Error("catalog list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "listing documents failed")
		return
	}

	resp := documentsResponse{Documents: make([]documentInfo, 0, len(docs))}
	for _, d := range docs {
		info := documentInfo{
			ID:         d.ID,
			Title:      d.Title,
			MimeType:   d.MimeType,
			Language:   d.Language,
			Chunks:     d.Chunks,
			Status:     string(d.Status),
			IngestedAt: d.IngestedAt.Format(time.RFC3339),
		}
		if !d.DocDate.IsZero() {
			info.DocDate = d.DocDate.Format(time.RFC3339)
		}
		resp.Documents = append(resp.Documents, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDocumentDelete handles DELETE /api/documents/{id}: remove the
// document's chunks from the vector store and its catalog row.
func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	if _, err := s.deps.Catalog.Get(r.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		log.Error("catalog lookup failed", slog.String("document_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	if err := s.deps.Ingester.Delete(r.Context(), id); err != nil {
		log.Error("document delete failed",
			slog.String("document_id", id),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
