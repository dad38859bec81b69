package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cambium-dev/docqa-go/internal/ingest"
	"github.com/cambium-dev/docqa-go/internal/logging"
)

// NewIngestCmd constructs the `docqa ingest` command, which indexes one or
// more documents into the vector store.
func NewIngestCmd() *cobra.Command {
	var title string
	var language string
	var dateStr string

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest PDF, DOCX, or CSV documents into the vector store",
		Long: `Extract, chunk, embed, and index documents so they become queryable.

The document format is detected from the file extension. Hebrew and Arabic
text stored in visual order is reordered to logical order before chunking.
Re-ingesting an unchanged file is a no-op; re-ingesting a changed file under
the same title supersedes the previous revision.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: docqa-chunks)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure, gemini (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  docqa ingest handbook.pdf
  docqa ingest --language he --date 2025-06-01 procedures.docx
  docqa ingest inventory.csv exports/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			var docDate time.Time
			if dateStr != "" {
				t, err := time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("ingest: --date must be YYYY-MM-DD: %w", err)
				}
				docDate = t
			}
			if title != "" && len(args) > 1 {
				return fmt.Errorf("ingest: --title cannot be combined with multiple files")
			}

			c, err := buildComponents(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer c.close()

			var failed int
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}

				md := ingest.Metadata{
					Title:    title,
					Language: language,
				}
				if md.Language == "" {
					md.Language = os.Getenv("INGEST_DEFAULT_LANGUAGE")
				}
				if md.Title == "" {
					md.Title = filepath.Base(path)
				}
				md.DocDate = docDate

				docID, err := c.pipeline.Ingest(ctx, data, mimeTypeForFile(path), md)
				if err != nil {
					failed++
					log.Error("ingestion failed",
						slog.String("file", path),
						slog.Any("error", err))
					var ie *ingest.IngestionError
					if errors.As(err, &ie) && len(ie.FailedChunks) > 0 {
						fmt.Fprintf(os.Stderr, "%s: chunks %v were rejected by the embedding backend\n", path, ie.FailedChunks)
					}
					continue
				}
				fmt.Printf("%s  %s\n", docID, path)
			}

			if failed > 0 {
				return fmt.Errorf("ingest: %d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Document title (default: file name; single file only)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Language hint: he, ar, en (default: detect)")
	cmd.Flags().StringVarP(&dateStr, "date", "d", "", "Document date, YYYY-MM-DD")

	return cmd
}

// mimeTypeForFile maps a file extension to the MIME type the extractors
// dispatch on.
func mimeTypeForFile(path string) string {
	switch filepath.Ext(path) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".csv":
		return "text/csv"
	default:
		return ""
	}
}
