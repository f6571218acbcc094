package embedding_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/raphaelgruber/rackcheck/internal/config"
	"github.com/raphaelgruber/rackcheck/internal/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient satisfies langchaingo's embeddings.EmbedderClient.
type fakeClient struct {
	dim   int
	fails int32
	calls atomic.Int32
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	n := f.calls.Add(1)
	if n <= f.fails {
		return nil, errors.New("connection reset")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

func TestLangChainEmbed(t *testing.T) {
	e, err := embedding.NewLangChain(&fakeClient{dim: 4}, "fake", 4)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "switch-7b")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, "fake", e.Model())
	assert.Equal(t, 4, e.Dimension())
}

func TestLangChainEmptyInput(t *testing.T) {
	client := &fakeClient{dim: 4}
	e, err := embedding.NewLangChain(client, "fake", 4)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailure)
	assert.Zero(t, client.calls.Load(), "empty input must not reach the backend")
}

func TestLangChainDimensionMismatch(t *testing.T) {
	e, err := embedding.NewLangChain(&fakeClient{dim: 3}, "fake", 4)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "H100")
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailure)
}

func TestLangChainRetriesTransientErrors(t *testing.T) {
	client := &fakeClient{dim: 2, fails: 1}
	e, err := embedding.NewLangChain(client, "fake", 2)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestLangChainGivesUp(t *testing.T) {
	client := &fakeClient{dim: 2, fails: 100}
	e, err := embedding.NewLangChain(client, "fake", 2)
	require.NoError(t, err)
	e.SetRetries(1)

	_, err = e.Embed(context.Background(), "never")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailure)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestEmbedBatchEmpty(t *testing.T) {
	e, err := embedding.NewLangChain(&fakeClient{dim: 2}, "fake", 2)
	require.NoError(t, err)

	out, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, out, 0)
}

func TestVoyageClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		// Return out of order to exercise index sorting.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, item{Embedding: []float32{float32(i), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := embedding.NewVoyageClient("key", "", 2)
	require.NoError(t, err)
	c.WithEndpoint(srv.URL)
	assert.Equal(t, embedding.DefaultVoyageModel, c.Model())

	out, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, out[0])
	assert.Equal(t, []float32{1, 1}, out[1])
}

func TestVoyageClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := embedding.NewVoyageClient("key", "voyage-3", 2)
	require.NoError(t, err)
	c.WithEndpoint(srv.URL)

	_, err = c.Embed(context.Background(), "H100")
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailure)
}

func TestVoyageClientRetries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"server error retried", http.StatusServiceUnavailable, 2},
		{"bad request not retried", http.StatusBadRequest, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					http.Error(w, "nope", tt.status)
					return
				}
				_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
			}))
			defer srv.Close()

			c, err := embedding.NewVoyageClient("key", "voyage-3", 2)
			require.NoError(t, err)
			c.WithEndpoint(srv.URL).SetRetries(1)

			_, err = c.Embed(context.Background(), "H100")
			if tt.wantCalls == 1 {
				assert.ErrorIs(t, err, embedding.ErrEmbeddingFailure)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestVoyageClientDuplicateIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0},{"embedding":[0,1],"index":0}]}`))
	}))
	defer srv.Close()

	c, err := embedding.NewVoyageClient("key", "", 2)
	require.NoError(t, err)
	c.WithEndpoint(srv.URL)

	_, err = c.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailure)
}

// nanClient returns a vector with a NaN component.
type nanClient struct{}

func (nanClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(math.NaN()), 1}
	}
	return out, nil
}

func TestNonFiniteEmbeddingRejected(t *testing.T) {
	e, err := embedding.NewLangChain(nanClient{}, "nan", 2)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "switch-7b")
	require.Error(t, err)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailure)
	assert.Contains(t, err.Error(), "non-finite")
}

func TestNewRequiresKeys(t *testing.T) {
	_, err := embedding.NewVoyageClient("", "", 0)
	assert.Error(t, err)

	cfg := config.Load()
	cfg.EmbedProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = ""
	_, err = embedding.New(cfg)
	assert.Error(t, err)

	cfg.EmbedProvider = "word2vec"
	_, err = embedding.New(cfg)
	assert.Error(t, err)
}
