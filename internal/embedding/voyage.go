package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultVoyageModel is used when no model is configured.
	DefaultVoyageModel = "voyage-3"

	// DefaultVoyageDimension is the output size of voyage-3.
	DefaultVoyageDimension = 1024

	// VoyageAPIEndpoint is the Voyage AI embeddings endpoint.
	VoyageAPIEndpoint = "https://api.voyageai.com/v1/embeddings"
)

// VoyageClient embeds text through the Voyage AI REST API.
type VoyageClient struct {
	apiKey    string
	model     string
	dimension int
	retries   uint64
	endpoint  string
	http      *http.Client
}

var _ Embedder = (*VoyageClient)(nil)

// NewVoyageClient creates a Voyage embedder. Empty model and zero dimension
// fall back to voyage-3 and 1024.
func NewVoyageClient(apiKey, model string, dimension int) (*VoyageClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("voyage API key required")
	}
	return &VoyageClient{
		apiKey:    apiKey,
		model:     cmpOr(model, DefaultVoyageModel),
		dimension: cmpOr(dimension, DefaultVoyageDimension),
		retries:   defaultRetries,
		endpoint:  VoyageAPIEndpoint,
		http:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func cmpOr[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// WithEndpoint overrides the API URL. Used by tests and proxies.
func (c *VoyageClient) WithEndpoint(url string) *VoyageClient {
	c.endpoint = url
	return c
}

// SetRetries sets how many times a failed request is retried.
func (c *VoyageClient) SetRetries(n uint64) {
	c.retries = n
}

func (c *VoyageClient) Model() string  { return c.model }
func (c *VoyageClient) Dimension() int { return c.dimension }

// Embed generates an embedding vector for text.
func (c *VoyageClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, failure("empty input")
	}
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts. Rate limits and server
// errors are retried; other rejections are not.
func (c *VoyageClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedBatch(ctx, c.model, c.dimension, c.retries, texts, c.post)
}

// post sends one embeddings request and orders the vectors by input index.
func (c *VoyageClient) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}{Input: texts, Model: c.model})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("voyage status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, permanent(statusErr)
	}

	var decoded struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, permanent(fmt.Errorf("decode response: %w", err))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(vectors) || vectors[d.Index] != nil {
			return nil, permanent(fmt.Errorf("unexpected embedding index %d", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	if len(decoded.Data) != len(texts) {
		return nil, permanent(fmt.Errorf("got %d embeddings for %d inputs", len(decoded.Data), len(texts)))
	}
	return vectors, nil
}
