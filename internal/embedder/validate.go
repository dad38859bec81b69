package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// chatModelFragments identify chat/completion models that are not embedding
// models. A match triggers a misconfiguration warning, not an error.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen",
	"solar", "vicuna", "falcon", "yi-",
	"gemini-1", "gemini-2",
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, frag := range chatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// requiredEnv lists, per backend, the credential env vars of which at least
// one must be set before the pipeline starts.
var requiredEnv = map[string][][]string{
	"ollama": nil,
	"openai": {{"EMBEDDING_API_KEY", "OPENAI_API_KEY"}},
	"azure": {
		{"EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY"},
		{"EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT"},
	},
	"gemini": {{"EMBEDDING_API_KEY", "GOOGLE_API_KEY"}},
}

// Validate is the startup pre-flight check for the embedding configuration.
// It fails fast on a clearly broken setup (missing credentials, unknown
// backend) and warns when EMBEDDING_MODEL names a chat model, so operators
// see one clear error instead of a cryptic failure on the first embed call.
func Validate(log *slog.Logger) error {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	groups, ok := requiredEnv[backend]
	if !ok {
		return fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, azure, gemini", backend)
	}
	for _, group := range groups {
		if firstEnv(group...) == "" {
			return fmt.Errorf("embedder: %s backend needs one of %s",
				backend, strings.Join(group, " or "))
		}
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small, text-embedding-004"),
		)
	}
	return nil
}

// firstEnv returns the first non-empty value among the named env vars.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
