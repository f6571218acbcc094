package knowledge

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/raphaelgruber/rackcheck/internal/models"
)

// MemoryIndex is an in-process Index. Searches share a read lock; writes
// take the exclusive lock. Ties in score keep insertion order.
type MemoryIndex struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]*models.KnowledgeDocument
}

var (
	_ Index  = (*MemoryIndex)(nil)
	_ Lister = (*MemoryIndex)(nil)
	_ Wiper  = (*MemoryIndex)(nil)
)

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]*models.KnowledgeDocument)}
}

// Insert stores doc. The ID must be set and unused.
func (m *MemoryIndex) Insert(_ context.Context, doc models.KnowledgeDocument) (*models.KnowledgeDocument, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("insert: empty document id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[doc.ID]; exists {
		return nil, fmt.Errorf("insert %s: %w", doc.ID, ErrAlreadyExists)
	}
	stored := cloneDoc(doc)
	m.docs[doc.ID] = &stored
	m.order = append(m.order, doc.ID)

	out := cloneDoc(stored)
	return &out, nil
}

// Replace updates content, embedding and optionally metadata of id.
func (m *MemoryIndex) Replace(_ context.Context, id, content string, embedding []float32, metadata map[string]any) (*models.KnowledgeDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("replace %s: %w", id, ErrNotFound)
	}

	updated := cloneDoc(*doc)
	updated.Content = content
	updated.Embedding = slices.Clone(embedding)
	if metadata != nil {
		updated.Metadata = maps.Clone(metadata)
	}
	updated.UpdatedAt = time.Now().UTC()
	m.docs[id] = &updated

	out := cloneDoc(updated)
	return &out, nil
}

// Remove deletes id.
func (m *MemoryIndex) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	delete(m.docs, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

// Get returns a copy of id.
func (m *MemoryIndex) Get(_ context.Context, id string) (*models.KnowledgeDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	out := cloneDoc(*doc)
	return &out, nil
}

// List returns documents of docType (all when empty) in insertion order.
func (m *MemoryIndex) List(_ context.Context, docType models.DocumentType) ([]models.KnowledgeDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.KnowledgeDocument, 0, len(m.order))
	for _, id := range m.order {
		doc := m.docs[id]
		if docType == "" || doc.Type == docType {
			out = append(out, cloneDoc(*doc))
		}
	}
	return out, nil
}

// Search scores every document against embedding.
func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, threshold float64, topK int, types []models.DocumentType) ([]models.ScoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filter := models.Query{Types: types}

	m.mu.RLock()
	hits := make([]models.ScoredDocument, 0, topK)
	for _, id := range m.order {
		doc := m.docs[id]
		if !filter.MatchesType(doc.Type) {
			continue
		}
		score := CosineSimilarity(embedding, doc.Embedding)
		// NaN compares false against any threshold.
		if math.IsNaN(score) || score < threshold {
			continue
		}
		hits = append(hits, models.ScoredDocument{Document: cloneDoc(*doc), Score: score})
	}
	m.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b models.ScoredDocument) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func cloneDoc(d models.KnowledgeDocument) models.KnowledgeDocument {
	d.Metadata = maps.Clone(d.Metadata)
	d.Embedding = slices.Clone(d.Embedding)
	return d
}

// WipeData removes every document.
func (m *MemoryIndex) WipeData(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*models.KnowledgeDocument)
	m.order = nil
	return nil
}
