package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cambium-dev/docqa-go/internal/answer"
	"github.com/cambium-dev/docqa-go/internal/catalog"
	"github.com/cambium-dev/docqa-go/internal/dates"
	"github.com/cambium-dev/docqa-go/internal/ingest"
	"github.com/cambium-dev/docqa-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request. Uploads
	// of large documents need headroom here.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Answer synthesis can take a while.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxUploadBytes caps the size of an uploaded document. Defaults to 32 MiB.
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil a fresh registry is created — tests stay hermetic.
	Registry *prometheus.Registry
}

// ingester is the interface handleIngest and handleDocumentDelete call.
// *ingest.Pipeline satisfies it; tests inject a fake.
type ingester interface {
	Ingest(ctx context.Context, data []byte, mimeType string, md ingest.Metadata) (string, error)
	Delete(ctx context.Context, documentID string) error
}

// retriever is the interface handleQuery calls to fetch relevant chunks.
// *rag.Retriever satisfies it.
type retriever interface {
	Retrieve(ctx context.Context, query string, f rag.Filter, topK int) ([]rag.Result, error)
}

// synthesizer is the interface handleQuery calls to generate a cited answer.
// *answer.Synthesizer satisfies it. May be nil — retrieval-only mode.
type synthesizer interface {
	Answer(ctx context.Context, question string, results []rag.Result) (*answer.Answer, error)
}

// Deps bundles the components the server exposes over HTTP.
type Deps struct {
	// Ingester runs document ingestion. Required.
	Ingester ingester
	// Retriever answers similarity queries. Required.
	Retriever retriever
	// Synthesizer generates cited answers. Optional; when nil, /api/query
	// returns retrieval results without an answer.
	Synthesizer synthesizer
	// Catalog is the document registry backing GET /api/documents. Required.
	Catalog *catalog.Store
	// Calendar resolves natural-language date expressions in queries.
	// When nil a calendar with the Israeli holiday table is used.
	Calendar *dates.Calendar
}

// Server is the HTTP server that exposes ingestion and retrieval.
type Server struct {
	deps       Deps
	calendar   *dates.Calendar
	cfg        *Config
	httpServer *http.Server
	log        *slog.Logger
	pingers    []Pinger
	metrics    *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	// DocumentID identifies the ingested (or previously indexed) document.
	DocumentID string `json:"documentId"`
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the user's natural-language question.
	Question string `json:"question"`
	// TopK caps the number of returned chunks. Server default applies when zero.
	TopK int `json:"topK,omitempty"`
	// Language restricts results to documents in this language ("he", "ar", "en").
	Language string `json:"language,omitempty"`
	// DocumentIDs restricts results to the listed documents.
	DocumentIDs []string `json:"documentIds,omitempty"`
	// Date is an optional natural-language date expression ("last month",
	// "since passover", "2025-01-01..2025-03-31") restricting results by
	// document date.
	Date string `json:"date,omitempty"`
	// NoAnswer skips answer synthesis and returns retrieval results only.
	NoAnswer bool `json:"noAnswer,omitempty"`
}

// queryResult is one retrieved chunk in a query response.
type queryResult struct {
	ChunkID    string  `json:"chunkId"`
	DocumentID string  `json:"documentId"`
	Title      string  `json:"title"`
	Locator    string  `json:"locator"`
	Text       string  `json:"text"`
	Similarity float32 `json:"similarity"`
	Score      float32 `json:"score"`
	// DocDate is the source document's date in RFC 3339, empty when undated.
	DocDate string `json:"docDate,omitempty"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	// Results is the ranked list of retrieved chunks.
	Results []queryResult `json:"results"`
	// Answer is the synthesized reply, absent in retrieval-only mode.
	Answer *answer.Answer `json:"answer,omitempty"`
	// DateFrom/DateTo echo the resolved date window, RFC 3339, when a date
	// expression was given.
	DateFrom string `json:"dateFrom,omitempty"`
	DateTo   string `json:"dateTo,omitempty"`
}

// documentInfo is one catalog row in a documents response.
type documentInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	MimeType   string `json:"mimeType"`
	Language   string `json:"language,omitempty"`
	DocDate    string `json:"docDate,omitempty"`
	Chunks     int    `json:"chunks"`
	Status     string `json:"status"`
	IngestedAt string `json:"ingestedAt"`
}

// documentsResponse is the JSON response for GET /api/documents.
type documentsResponse struct {
	Documents []documentInfo `json:"documents"`
}

// errorResponse is the JSON error body for API failures.
type errorResponse struct {
	Error string `json:"error"`
}
