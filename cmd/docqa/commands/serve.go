package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cambium-dev/docqa-go/internal/logging"
	"github.com/cambium-dev/docqa-go/internal/server"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP
// API for ingestion and querying.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP API server",
		Long: `Start the docqa HTTP server on localhost.

The server exposes:
  POST   /api/ingest          multipart document upload
  POST   /api/query           question answering with cited sources
  GET    /api/documents       document catalog listing
  DELETE /api/documents/{id}  document removal
  GET    /api/health          liveness
  GET    /api/ready           dependency readiness
  GET    /metrics             Prometheus metrics

Examples:
  docqa serve
  docqa serve --port 9090
  EMBEDDING_PROVIDER=gemini ANSWER_PROVIDER=gemini docqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("embedding_provider", getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")),
				slog.String("answer_provider", getEnvOrDefault("ANSWER_PROVIDER", "ollama")))

			c, err := buildComponents(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer c.close()

			pingers := []server.Pinger{
				server.NewQdrantPinger(c.store.Client()),
				server.NewCatalogPinger(c.catalog),
			}

			srv, err := server.New(server.Deps{
				Ingester:    c.pipeline,
				Retriever:   c.retriever,
				Synthesizer: c.synthesizer,
				Catalog:     c.catalog,
			}, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("DOCQA_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
