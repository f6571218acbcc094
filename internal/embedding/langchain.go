package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChain wraps a langchaingo embedder with dimension validation and retry.
type LangChain struct {
	model     embeddings.Embedder
	modelName string
	dimension int
	attempts  uint64
}

// Compile-time check that LangChain implements Embedder.
var _ Embedder = (*LangChain)(nil)

// NewLangChain wraps any langchaingo embedding client.
func NewLangChain(client embeddings.EmbedderClient, modelName string, dimension int) (*LangChain, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	model, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &LangChain{
		model:     model,
		modelName: modelName,
		dimension: dimension,
		attempts:  defaultRetries,
	}, nil
}

// NewOllama creates an embedder backed by a local Ollama server.
func NewOllama(host, model string, dimension int) (*LangChain, error) {
	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return NewLangChain(llm, model, dimension)
}

// NewOpenAI creates an embedder backed by the OpenAI embeddings API.
func NewOpenAI(apiKey, model string, dimension int) (*LangChain, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	return NewLangChain(llm, model, dimension)
}

// SetRetries sets how many times a failed request is retried.
func (e *LangChain) SetRetries(n uint64) {
	e.attempts = n
}

// Embed generates an embedding vector for text.
func (e *LangChain) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, failure("empty input")
	}

	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LangChain) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatch(ctx, e.modelName, e.dimension, e.attempts, texts, e.model.EmbedDocuments)
}

// Model returns the embedding model name.
func (e *LangChain) Model() string {
	return e.modelName
}

// Dimension returns the expected embedding dimension.
func (e *LangChain) Dimension() int {
	return e.dimension
}
