// Package embedder provides implementations of the rag.Embedder interface for
// converting text into dense vector embeddings, plus the batching and retry
// layer the ingestion pipeline drives them through. The OpenAI, Azure, and
// Ollama backends talk plain HTTP — no additional SDK dependencies are
// required; Gemini goes through the official genai client.
package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// OpenAIEmbedder calls the OpenAI or Azure OpenAI embeddings REST API.
// Safe for concurrent use.
type OpenAIEmbedder struct {
	cfg    OpenAIConfig
	client *http.Client
}

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI, or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL string
	// APIKey authenticates the request: Bearer token for OpenAI, api-key
	// header for Azure.
	APIKey string
	// Model is the embedding model, e.g. "text-embedding-3-small". Under
	// Azure this is the deployment name.
	Model string
	// Dimensions requests a specific vector length; 0 keeps the model default.
	Dimensions int
	// Azure switches to Azure-style auth and URL layout.
	Azure bool
	// APIVersion is the Azure api-version query parameter. Ignored for OpenAI.
	APIVersion string
}

func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		cfg:    *cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e *OpenAIEmbedder) endpoint() (url string, header http.Header) {
	header = http.Header{}
	if e.cfg.Azure {
		header.Set("api-key", e.cfg.APIKey)
		return e.cfg.BaseURL + "/deployments/" + e.cfg.Model +
			"/embeddings?api-version=" + e.cfg.APIVersion, header
	}
	header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	return e.cfg.BaseURL + "/embeddings", header
}

// Embed returns one vector per input text, in input order. Failures come
// back as RequestError values so the batching layer can tell transient from
// terminal conditions.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	in := openaiEmbedRequest{Input: texts, Model: e.cfg.Model, Dimensions: e.cfg.Dimensions}

	url, header := e.endpoint()
	var out openaiEmbedResponse
	status, err := postJSON(ctx, e.client, url, header, in, &out, "openai embedder")
	if err != nil {
		return nil, err
	}
	if !httpOK(status) {
		msg := fmt.Sprintf("HTTP %d", status)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return nil, statusError(status, fmt.Errorf("openai embedder: %s", msg))
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d",
			len(texts), len(out.Data))
	}

	// Responses may arrive out of order; place by index.
	embeddings := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}
