// Package embedding turns text into fixed-dimension vectors via an external model.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/raphaelgruber/rackcheck/internal/config"
)

const (
	defaultRetries = 2
	retryBase      = 200 * time.Millisecond
)

// ErrEmbeddingFailure marks transport, timeout, empty-input and dimension
// errors from an embedding backend. Callers may retry but must not ignore it.
var ErrEmbeddingFailure = errors.New("embedding failure")

// Embedder defines the interface for text embedding providers.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	// Must match the dimension of vectors already held by the knowledge index.
	Dimension() int
}

// New creates an Embedder for the configured provider.
func New(cfg config.Config) (Embedder, error) {
	switch cfg.EmbedProvider {
	case config.ProviderOllama, "":
		return NewOllama(cfg.OllamaHost, cfg.EmbedModel, cfg.EmbedDimension)
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbedModel, cfg.EmbedDimension)
	case config.ProviderVoyage:
		return NewVoyageClient(cfg.VoyageAPIKey, cfg.EmbedModel, cfg.EmbedDimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.EmbedProvider)
	}
}

func failure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEmbeddingFailure, fmt.Sprintf(format, args...))
}

func wrapFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEmbeddingFailure, op, err)
}

// permanentError is a backend failure that retrying cannot fix, such as a
// rejected request or a malformed response.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return permanentError{err: err} }

// batchFunc sends one request for texts to an embedding backend.
type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// embedBatch runs call with retries, then checks that it returned one finite
// vector of the given dimension per text. Every failure wraps
// ErrEmbeddingFailure.
func embedBatch(ctx context.Context, model string, dimension int, retries uint64, texts []string, call batchFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	var vectors [][]float32
	backoff := retry.WithMaxRetries(retries, retry.NewExponential(retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		vectors, callErr = call(ctx, texts)
		var perm permanentError
		switch {
		case callErr == nil:
			return nil
		case ctx.Err() != nil, errors.As(callErr, &perm):
			return callErr
		default:
			return retry.RetryableError(callErr)
		}
	})
	duration := time.Since(start)
	if err != nil {
		slog.Warn("embedding failed", "model", model, "texts", len(texts), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, wrapFailure("embed", err)
	}

	if len(vectors) != len(texts) {
		return nil, failure("count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, failure("embedding %d dimension mismatch: got %d, want %d", i, len(v), dimension)
		}
		for _, x := range v {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, failure("embedding %d contains non-finite values", i)
			}
		}
	}

	slog.Debug("embedding complete", "model", model, "texts", len(texts), "duration_ms", duration.Milliseconds())
	return vectors, nil
}
