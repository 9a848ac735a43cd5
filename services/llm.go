package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// placeholderAPIKey is sent to self-hosted endpoints that do not check keys;
// the openai client refuses to start without one.
const placeholderAPIKey = "none"

// NewChatModel connects to an OpenAI-compatible chat-completions endpoint.
// apiBase is the server root; "/v1" is appended as the deployed servers expect.
func NewChatModel(apiBase, apiKey, modelName string) (*openai.LLM, error) {
	llm, err := openai.New(
		openai.WithBaseURL(apiV1(apiBase)),
		openai.WithToken(keyOrPlaceholder(apiKey)),
		openai.WithModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model %s: %w", modelName, err)
	}
	return llm, nil
}

// NewEmbedder connects to an OpenAI-compatible embeddings endpoint.
func NewEmbedder(apiBase, apiKey, modelName string) (embeddings.Embedder, error) {
	client, err := openai.New(
		openai.WithBaseURL(apiV1(apiBase)),
		openai.WithToken(keyOrPlaceholder(apiKey)),
		openai.WithEmbeddingModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client %s: %w", modelName, err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func apiV1(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func keyOrPlaceholder(key string) string {
	if key == "" {
		return placeholderAPIKey
	}
	return key
}
