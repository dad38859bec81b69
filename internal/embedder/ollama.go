package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// OllamaEmbedder talks to a local Ollama instance through its /api/embed
// endpoint. No credentials are involved. Safe for concurrent use.
type OllamaEmbedder struct {
	host   string
	model  string
	client *http.Client
}

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the server base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model, e.g. "nomic-embed-text".
	Model string
}

func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:  cfg.Host,
		model: cfg.Model,
		// Local models can be slow to load on first use.
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per input text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	in := ollamaEmbedRequest{Model: e.model, Input: texts}

	var out ollamaEmbedResponse
	status, err := postJSON(ctx, e.client, e.host+"/api/embed", nil, in, &out, "ollama embedder")
	if err != nil {
		return nil, err
	}
	if !httpOK(status) {
		msg := fmt.Sprintf("HTTP %d", status)
		if out.Error != "" {
			msg = out.Error
		}
		return nil, statusError(status, fmt.Errorf("ollama embedder: %s", msg))
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d",
			len(texts), len(out.Embeddings))
	}
	return out.Embeddings, nil
}
