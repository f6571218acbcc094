// Package knowledge stores operational knowledge documents with embeddings
// and answers similarity queries over them.
package knowledge

import (
	"context"
	"errors"

	"github.com/raphaelgruber/rackcheck/internal/models"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrRetrievalFailure marks an unreachable index or a malformed query.
	ErrRetrievalFailure = errors.New("retrieval failure")

	// ErrAlreadyExists indicates an insert with an id that is already stored.
	ErrAlreadyExists = errors.New("document already exists")
)

// Store is the knowledge store contract consumed by the validation pipeline.
// Query never mutates; Add, Update and Delete are each atomic.
type Store interface {
	Add(ctx context.Context, content string, docType models.DocumentType, metadata map[string]any) (*models.KnowledgeDocument, error)
	// Update re-embeds content. A nil metadata keeps the existing metadata.
	Update(ctx context.Context, id, content string, metadata map[string]any) (*models.KnowledgeDocument, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.KnowledgeDocument, error)
	// Query returns documents scoring at least q.Threshold, best first,
	// at most q.TopK. No match is an empty slice and a nil error.
	Query(ctx context.Context, q models.Query) ([]models.ScoredDocument, error)
}

// Index persists embedded documents and ranks them against a vector.
// Implementations must allow concurrent Search calls.
type Index interface {
	Insert(ctx context.Context, doc models.KnowledgeDocument) (*models.KnowledgeDocument, error)
	// Replace swaps content and embedding in one write. Nil metadata is kept.
	Replace(ctx context.Context, id, content string, embedding []float32, metadata map[string]any) (*models.KnowledgeDocument, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.KnowledgeDocument, error)
	Search(ctx context.Context, embedding []float32, threshold float64, topK int, types []models.DocumentType) ([]models.ScoredDocument, error)
}

// Lister is implemented by indexes that can enumerate their documents.
type Lister interface {
	List(ctx context.Context, docType models.DocumentType) ([]models.KnowledgeDocument, error)
}

// Wiper is implemented by indexes that can drop every document at once.
type Wiper interface {
	WipeData(ctx context.Context) error
}
