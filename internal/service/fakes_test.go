package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/llm"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

// keywordEmbedder maps text onto one dimension per known keyword, so texts
// sharing the same keywords score 1 and unrelated texts score near 0.
type keywordEmbedder struct {
	keywords []string
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{keywords: []string{
		"switch-7b", "switch-8b", "pod_7", "pod_6",
		"800g_osfp_transceiver", "dac_cable_2m", "h100",
	}}
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("empty text")
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.keywords)+1)
	for i, k := range e.keywords {
		if strings.Contains(lower, k) {
			vec[i] = 1
		}
	}
	vec[len(e.keywords)] = 0.01
	return vec, nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *keywordEmbedder) Model() string  { return "keywords" }
func (e *keywordEmbedder) Dimension() int { return len(e.keywords) + 1 }

// scriptedLLM answers by prompt kind and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	requests []llm.Request
	calls    atomic.Int32

	location  scriptFunc
	inventory scriptFunc
	technical scriptFunc
	priority  scriptFunc
}

var errUnscripted = errors.New("unscripted prompt")

func (s *scriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	var fn func(context.Context, llm.Request) (string, error)
	switch {
	case strings.Contains(req.Prompt, "location mismatch"):
		fn = s.location
	case strings.Contains(req.Prompt, "Is this part available"):
		fn = s.inventory
	case strings.Contains(req.Prompt, "Context from manuals"):
		fn = s.technical
	case strings.Contains(req.Prompt, "Assign a priority"):
		fn = s.priority
	}
	if fn == nil {
		return "", errUnscripted
	}
	return fn(ctx, req)
}

func (s *scriptedLLM) promptsContaining(substr string) []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []llm.Request
	for _, r := range s.requests {
		if strings.Contains(r.Prompt, substr) {
			out = append(out, r)
		}
	}
	return out
}

type scriptFunc = func(ctx context.Context, req llm.Request) (string, error)

func reply(s string) scriptFunc {
	return func(context.Context, llm.Request) (string, error) { return s, nil }
}

func fail(err error) scriptFunc {
	return func(context.Context, llm.Request) (string, error) { return "", err }
}

// blockUntilDone waits for the request deadline.
func blockUntilDone(ctx context.Context, _ llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type seedDoc struct {
	content string
	typ     models.DocumentType
	meta    map[string]any
}

func newTestStore(t *testing.T, docs ...seedDoc) *knowledge.Service {
	t.Helper()
	store := knowledge.NewService(newKeywordEmbedder(), knowledge.NewMemoryIndex(), nil, nil)
	for _, d := range docs {
		_, err := store.Add(context.Background(), d.content, d.typ, d.meta)
		require.NoError(t, err)
	}
	return store
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.LaneTimeout = 2 * time.Second
	opts.PipelineTimeout = 5 * time.Second
	opts.PriorityTimeout = 2 * time.Second
	return opts
}
