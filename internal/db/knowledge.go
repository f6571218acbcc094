package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

var (
	_ knowledge.Index  = (*Client)(nil)
	_ knowledge.Lister = (*Client)(nil)
	_ knowledge.Wiper  = (*Client)(nil)
)

// knowledgeRow is the stored shape of a knowledge document.
type knowledgeRow struct {
	ID           surrealmodels.RecordID `json:"id"`
	Content      string                 `json:"content"`
	DocumentType string                 `json:"document_type"`
	Metadata     map[string]any         `json:"metadata"`
	Embedding    []float32              `json:"embedding"`
	Seq          int64                  `json:"seq"`
	Created      time.Time              `json:"created"`
	Updated      time.Time              `json:"updated"`
	Score        float64                `json:"score,omitempty"`
}

func (r knowledgeRow) document() models.KnowledgeDocument {
	meta := r.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return models.KnowledgeDocument{
		ID:        recordIDString(r.ID),
		Content:   r.Content,
		Type:      models.DocumentType(r.DocumentType),
		Metadata:  meta,
		Embedding: r.Embedding,
		CreatedAt: r.Created,
		UpdatedAt: r.Updated,
	}
}

// recordIDString returns the key part of a record id ("knowledge:abc" -> "abc").
func recordIDString(id surrealmodels.RecordID) string {
	if s, ok := id.ID.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", id.ID)
}

// lastSeq keeps sequence numbers strictly increasing within a process even
// when the clock does not advance between inserts.
var lastSeq atomic.Int64

func nextSeq() int64 {
	for {
		now := time.Now().UnixNano()
		prev := lastSeq.Load()
		if now <= prev {
			now = prev + 1
		}
		if lastSeq.CompareAndSwap(prev, now) {
			return now
		}
	}
}

// firstRow extracts the first row of the first statement result.
func firstRow(results *[]surrealdb.QueryResult[[]knowledgeRow]) (knowledgeRow, bool) {
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return knowledgeRow{}, false
	}
	return (*results)[0].Result[0], true
}

// withConflictRetry retries fn while SurrealDB reports transaction conflicts.
func withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, ErrTransactionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Insert creates a knowledge document with the given ID.
func (c *Client) Insert(ctx context.Context, doc models.KnowledgeDocument) (*models.KnowledgeDocument, error) {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	var row knowledgeRow
	err := withConflictRetry(ctx, func(ctx context.Context) error {
		results, err := surrealdb.Query[[]knowledgeRow](ctx, c.db, `
			CREATE type::record("knowledge", $id) CONTENT {
				content: $content,
				document_type: $document_type,
				metadata: $metadata,
				embedding: $embedding,
				seq: $seq
			} RETURN AFTER
		`, map[string]any{
			"id":            doc.ID,
			"content":       doc.Content,
			"document_type": string(doc.Type),
			"metadata":      metadata,
			"embedding":     doc.Embedding,
			"seq":           nextSeq(),
		})
		if err != nil {
			return wrapQueryError(err)
		}
		var ok bool
		if row, ok = firstRow(results); !ok {
			return errors.New("no result returned")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert knowledge %s: %w", doc.ID, err)
	}

	out := row.document()
	return &out, nil
}

// Replace updates content and embedding in a single statement. Nil metadata
// leaves the stored metadata untouched.
func (c *Client) Replace(ctx context.Context, id, content string, embedding []float32, metadata map[string]any) (*models.KnowledgeDocument, error) {
	set := []string{"content = $content", "embedding = $embedding", "updated = time::now()"}
	vars := map[string]any{
		"id":        id,
		"content":   content,
		"embedding": embedding,
	}
	if metadata != nil {
		set = append(set, "metadata = $metadata")
		vars["metadata"] = metadata
	}

	// UPDATE on a missing record yields no rows and creates nothing.
	sql := fmt.Sprintf(`UPDATE type::record("knowledge", $id) SET %s RETURN AFTER`, strings.Join(set, ", "))

	var (
		row   knowledgeRow
		found bool
	)
	err := withConflictRetry(ctx, func(ctx context.Context) error {
		results, err := surrealdb.Query[[]knowledgeRow](ctx, c.db, sql, vars)
		if err != nil {
			return wrapQueryError(err)
		}
		row, found = firstRow(results)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replace knowledge %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("replace knowledge %s: %w", id, knowledge.ErrNotFound)
	}

	out := row.document()
	return &out, nil
}

// Remove deletes a knowledge document.
func (c *Client) Remove(ctx context.Context, id string) error {
	var found bool
	err := withConflictRetry(ctx, func(ctx context.Context) error {
		results, err := surrealdb.Query[[]knowledgeRow](ctx, c.db, `
			DELETE type::record("knowledge", $id) RETURN BEFORE
		`, map[string]any{"id": id})
		if err != nil {
			return wrapQueryError(err)
		}
		_, found = firstRow(results)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove knowledge %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("remove knowledge %s: %w", id, knowledge.ErrNotFound)
	}
	return nil
}

// Get retrieves a knowledge document by ID.
func (c *Client) Get(ctx context.Context, id string) (*models.KnowledgeDocument, error) {
	results, err := surrealdb.Query[[]knowledgeRow](ctx, c.db, `
		SELECT * FROM type::record("knowledge", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get knowledge %s: %w", id, wrapQueryError(err))
	}

	row, ok := firstRow(results)
	if !ok {
		return nil, fmt.Errorf("get knowledge %s: %w", id, knowledge.ErrNotFound)
	}
	out := row.document()
	return &out, nil
}

// List returns documents of docType (all when empty) in insertion order.
func (c *Client) List(ctx context.Context, docType models.DocumentType) ([]models.KnowledgeDocument, error) {
	sql := `SELECT * FROM knowledge ORDER BY seq ASC`
	vars := map[string]any{}
	if docType != "" {
		sql = `SELECT * FROM knowledge WHERE document_type = $type ORDER BY seq ASC`
		vars["type"] = string(docType)
	}

	results, err := surrealdb.Query[[]knowledgeRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", wrapQueryError(err))
	}

	docs := []models.KnowledgeDocument{}
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			docs = append(docs, row.document())
		}
	}
	return docs, nil
}

// Search ranks documents by cosine similarity to embedding. The scan is exact
// so threshold filtering never misses a document the HNSW graph would skip.
func (c *Client) Search(
	ctx context.Context,
	embedding []float32,
	threshold float64,
	topK int,
	types []models.DocumentType,
) ([]models.ScoredDocument, error) {
	typeClause := ""
	vars := map[string]any{
		"emb":       embedding,
		"threshold": threshold,
		"limit":     topK,
	}
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		typeClause = "AND document_type IN $types"
		vars["types"] = names
	}

	sql := fmt.Sprintf(`
		SELECT * FROM (
			SELECT *, vector::similarity::cosine(embedding, $emb) AS score
			FROM knowledge
			WHERE array::len(embedding) = array::len($emb) %s
		)
		WHERE score >= $threshold
		ORDER BY score DESC, seq ASC
		LIMIT $limit
	`, typeClause)

	results, err := surrealdb.Query[[]knowledgeRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: search knowledge: %w", knowledge.ErrRetrievalFailure, wrapQueryError(err))
	}

	hits := []models.ScoredDocument{}
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			hits = append(hits, models.ScoredDocument{Document: row.document(), Score: row.Score})
		}
	}
	return hits, nil
}
