package models

import (
	"fmt"
	"time"
)

// DocumentType tags a knowledge document. The set is open; the constants
// below are the types the validation pipeline queries.
type DocumentType string

const (
	DocInventory    DocumentType = "inventory"
	DocTopology     DocumentType = "topology"
	DocSwitchStatus DocumentType = "switch_status"
	DocManualChunk  DocumentType = "manual_chunk"
)

// KnowledgeDocument is one piece of operational knowledge with its embedding.
type KnowledgeDocument struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Type      DocumentType   `json:"document_type"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MetadataString returns metadata[key] formatted as a string, or def when
// the key is absent or nil.
func (d KnowledgeDocument) MetadataString(key, def string) string {
	v, ok := d.Metadata[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return def
		}
		return s
	}
	return fmt.Sprint(v)
}

// ScoredDocument pairs a document with its similarity to a query.
type ScoredDocument struct {
	Document KnowledgeDocument `json:"document"`
	Score    float64           `json:"similarity"`
}

// Query describes a similarity search against the knowledge store.
type Query struct {
	Text      string
	Threshold float64
	TopK      int
	// Types restricts results to the listed document types. Empty means any type.
	Types []DocumentType
}

// MatchesType reports whether t passes the query's type filter.
func (q Query) MatchesType(t DocumentType) bool {
	if len(q.Types) == 0 {
		return true
	}
	for _, want := range q.Types {
		if want == t {
			return true
		}
	}
	return false
}
