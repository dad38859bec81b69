package answer

import (
	"context"
	"fmt"
	"os"
	"strconv"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Backend enumerates the supported chat-model providers.
type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
	BackendAzure  Backend = "azure"
	BackendGemini Backend = "gemini"
)

// ChatModel is the slice of the eino model surface the synthesizer needs.
// model.ToolCallingChatModel satisfies it.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ModelConfig holds chat-model provider configuration.
type ModelConfig struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name or deployment ID (e.g. "gpt-4o", "gemini-2.0-flash").
	Model string

	// BaseURL overrides the default API endpoint (Ollama and Azure).
	BaseURL string

	// APIKey is the credential for the selected provider.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps generated tokens per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// NewModelFromEnv constructs a ChatModel by reading provider configuration
// from environment variables. ANSWER_PROVIDER selects the backend; the
// ANSWER_* variables override each backend's native credential variables.
//
// Environment variables:
//
//	ANSWER_PROVIDER = ollama | openai | azure | gemini (default: ollama)
//	ANSWER_MODEL, ANSWER_API_KEY, ANSWER_ENDPOINT — backend overrides
//
//	Ollama: OLLAMA_HOST (default: http://localhost:11434), default model llama3
//	OpenAI: OPENAI_API_KEY, default model gpt-4o
//	Azure:  AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	        AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Gemini: GOOGLE_API_KEY, default model gemini-2.0-flash
//
//	Shared: ANSWER_MAX_TOKENS (default: 4096), ANSWER_TEMPERATURE (default: 0.2)
func NewModelFromEnv(ctx context.Context) (ChatModel, error) {
	backend := Backend(getEnvOrDefault("ANSWER_PROVIDER", string(BackendOllama)))
	cfg := ModelConfig{
		Backend:     backend,
		Model:       os.Getenv("ANSWER_MODEL"),
		APIKey:      os.Getenv("ANSWER_API_KEY"),
		BaseURL:     os.Getenv("ANSWER_ENDPOINT"),
		MaxTokens:   getEnvInt("ANSWER_MAX_TOKENS", 4096),
		Temperature: getEnvFloat32("ANSWER_TEMPERATURE", 0.2),
	}
	switch backend {
	case BackendOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		if cfg.Model == "" {
			cfg.Model = "llama3"
		}
	case BackendOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.Model == "" {
			cfg.Model = "gpt-4o"
		}
	case BackendAzure:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
		if cfg.Model == "" {
			cfg.Model = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		}
		cfg.AzureAPIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01")
	case BackendGemini:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
		if cfg.Model == "" {
			cfg.Model = "gemini-2.0-flash"
		}
	}
	return NewModel(ctx, cfg)
}

// NewModel constructs a ChatModel from an explicit config, delegating to the
// appropriate backend constructor. Validation happens here so callers get a
// clear error at startup rather than on the first request.
func NewModel(ctx context.Context, cfg ModelConfig) (ChatModel, error) {
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("answer: unknown model backend %q — valid values: ollama, openai, azure, gemini", cfg.Backend)
	}
}

func newOllama(ctx context.Context, cfg ModelConfig) (ChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		BaseURL: baseURL,
		Model:   cfg.Model,
	})
}

func newOpenAI(ctx context.Context, cfg ModelConfig) (ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("answer: OPENAI_API_KEY is required for openai backend")
	}
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
	})
}

func newAzure(ctx context.Context, cfg ModelConfig) (ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("answer: AZURE_OPENAI_API_KEY is required for azure backend")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("answer: AZURE_OPENAI_ENDPOINT is required for azure backend")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("answer: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
	}
	return einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{ //nolint:wrapcheck // constructor passthrough
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		ByAzure:     true,
		APIVersion:  cfg.AzureAPIVersion,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		// Keep the deployment name as-is — the default mapper strips dots
		// which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	})
}

func newGemini(ctx context.Context, cfg ModelConfig) (ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("answer: GOOGLE_API_KEY is required for gemini backend")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("answer: failed to create Gemini client: %w", err)
	}
	return einogemini.NewChatModel(ctx, &einogemini.Config{ //nolint:wrapcheck // constructor passthrough
		Client: client,
		Model:  cfg.Model,
	})
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
