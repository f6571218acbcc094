package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/llm"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

// NoManualAnswer is returned when no manual chunk clears the threshold.
const NoManualAnswer = "I couldn't find relevant information in the manuals for that question."

const technicalSystem = "You are a technical assistant for data center technicians. " +
	"Give concise, accurate answers (2-3 sentences) based only on the provided manual excerpts. " +
	"Always cite the source manual."

// TechnicalResolver answers questions from manual chunks in the knowledge store.
type TechnicalResolver struct {
	store     knowledge.Store
	llm       llm.Completer
	threshold float64
	topK      int
	logger    *slog.Logger
}

// NewTechnicalResolver creates a resolver querying manual chunks that score
// at least threshold, keeping the best topK.
func NewTechnicalResolver(store knowledge.Store, c llm.Completer, threshold float64, topK int, logger *slog.Logger) *TechnicalResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &TechnicalResolver{
		store:     store,
		llm:       c,
		threshold: threshold,
		topK:      topK,
		logger:    logger,
	}
}

// Resolve retrieves manual chunks for question and synthesizes a cited answer.
func (r *TechnicalResolver) Resolve(ctx context.Context, question string) (*models.TechnicalVerdict, error) {
	chunks, err := r.store.Query(ctx, models.Query{
		Text:      question,
		Threshold: r.threshold,
		TopK:      r.topK,
		Types:     []models.DocumentType{models.DocManualChunk},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve manual chunks: %w", err)
	}

	if len(chunks) == 0 {
		r.logger.Debug("no manual chunks above threshold", "threshold", r.threshold)
		return &models.TechnicalVerdict{Answer: NoManualAnswer, Sources: []string{}}, nil
	}

	answer, err := r.llm.Complete(ctx, llm.Request{
		System: technicalSystem,
		Prompt: fmt.Sprintf("Context from manuals:\n%s\n\nQuestion: %s\n\nProvide a clear answer with source citations.",
			buildManualContext(chunks), question),
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	return &models.TechnicalVerdict{
		Answer:  strings.TrimSpace(answer),
		Sources: sourceLabels(chunks),
	}, nil
}

func chunkSource(d models.KnowledgeDocument) (source, page string) {
	return d.MetadataString("source", "unknown"), d.MetadataString("page", "N/A")
}

// buildManualContext labels each chunk with its source and page.
func buildManualContext(chunks []models.ScoredDocument) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		source, page := chunkSource(c.Document)
		parts = append(parts, fmt.Sprintf("[Source: %s, Page %s]\n%s", source, page, c.Document.Content))
	}
	return strings.Join(parts, "\n\n")
}

// sourceLabels returns unique "source, pg page" labels in first-seen order.
func sourceLabels(chunks []models.ScoredDocument) []string {
	seen := make(map[string]bool, len(chunks))
	labels := make([]string, 0, len(chunks))
	for _, c := range chunks {
		source, page := chunkSource(c.Document)
		label := source + ", pg " + page
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}
