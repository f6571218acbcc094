package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/rackcheck/internal/embedding"
	"github.com/raphaelgruber/rackcheck/internal/metrics"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

// Service implements Store by embedding text and delegating to an Index.
type Service struct {
	embedder  embedding.Embedder
	index     Index
	collector *metrics.Collector
	logger    *slog.Logger
}

var _ Store = (*Service)(nil)

// NewService creates a knowledge store over index. Collector may be nil.
func NewService(embedder embedding.Embedder, index Index, collector *metrics.Collector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:  embedder,
		index:     index,
		collector: collector,
		logger:    logger,
	}
}

// Add embeds content and stores it as a new document.
func (s *Service) Add(ctx context.Context, content string, docType models.DocumentType, metadata map[string]any) (*models.KnowledgeDocument, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("add document: empty content")
	}
	if docType == "" {
		return nil, fmt.Errorf("add document: empty document type")
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("add document: %w", err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	now := time.Now().UTC()
	doc := models.KnowledgeDocument{
		ID:        uuid.NewString(),
		Content:   content,
		Type:      docType,
		Metadata:  metadata,
		Embedding: vec,
		CreatedAt: now,
		UpdatedAt: now,
	}

	start := time.Now()
	stored, err := s.index.Insert(ctx, doc)
	if errors.Is(err, ErrAlreadyExists) {
		// Generated ids only collide when the index already holds this id.
		s.logger.Warn("document id collision, retrying with a new id", "id", doc.ID)
		doc.ID = uuid.NewString()
		stored, err = s.index.Insert(ctx, doc)
	}
	s.collector.RecordTiming(metrics.OpStoreWrite, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("add document: %w", err)
	}

	s.logger.Debug("document added", "id", stored.ID, "type", docType)
	return stored, nil
}

// Update re-embeds content for id. Nil metadata keeps the stored metadata.
func (s *Service) Update(ctx context.Context, id, content string, metadata map[string]any) (*models.KnowledgeDocument, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("update %s: empty content", id)
	}
	if _, err := s.index.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}

	vec, err := s.embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}

	start := time.Now()
	updated, err := s.index.Replace(ctx, id, content, vec, metadata)
	s.collector.RecordTiming(metrics.OpStoreWrite, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}

	s.logger.Debug("document updated", "id", id, "metadata_replaced", metadata != nil)
	return updated, nil
}

// Delete removes id.
func (s *Service) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.index.Remove(ctx, id)
	s.collector.RecordTiming(metrics.OpStoreWrite, time.Since(start))
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.logger.Debug("document deleted", "id", id)
	return nil
}

// Get returns id.
func (s *Service) Get(ctx context.Context, id string) (*models.KnowledgeDocument, error) {
	doc, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Query embeds q.Text and returns matching documents, best first.
func (s *Service) Query(ctx context.Context, q models.Query) ([]models.ScoredDocument, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: empty query text", ErrRetrievalFailure)
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrRetrievalFailure, q.TopK)
	}
	if q.Threshold > 1 {
		// Cosine similarity never exceeds 1.
		return []models.ScoredDocument{}, nil
	}

	vec, err := s.embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	start := time.Now()
	hits, err := s.index.Search(ctx, vec, q.Threshold, q.TopK, q.Types)
	s.collector.RecordTiming(metrics.OpStoreQuery, time.Since(start))
	if err != nil {
		if errors.Is(err, ErrRetrievalFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailure, err)
	}
	if hits == nil {
		hits = []models.ScoredDocument{}
	}

	s.logger.Debug("knowledge query",
		"types", q.Types,
		"threshold", q.Threshold,
		"top_k", q.TopK,
		"hits", len(hits))
	return hits, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, text)
	s.collector.RecordTiming(metrics.OpEmbedding, time.Since(start))
	if err != nil {
		s.collector.RecordFailure(metrics.OpEmbedding)
		return nil, err
	}
	if dim := s.embedder.Dimension(); dim > 0 && len(vec) != dim {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", embedding.ErrEmbeddingFailure, len(vec), dim)
	}
	for _, x := range vec {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, fmt.Errorf("%w: embedding contains non-finite values", embedding.ErrEmbeddingFailure)
		}
	}
	return vec, nil
}
