// Package seed loads knowledge fixtures into a knowledge store.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/models"
)

//go:embed fixtures/datacenter.yaml
var builtinFixture []byte

// Fixture is a set of documents to load.
type Fixture struct {
	Documents []Document `yaml:"documents"`
}

// Document is one fixture entry.
type Document struct {
	Type     models.DocumentType `yaml:"type"`
	Content  string              `yaml:"content"`
	Metadata map[string]any      `yaml:"metadata"`
}

// Builtin returns the embedded datacenter fixture.
func Builtin() (*Fixture, error) {
	return Parse(builtinFixture)
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes and checks a YAML fixture.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	var errs []error
	for i, d := range f.Documents {
		if strings.TrimSpace(d.Content) == "" {
			errs = append(errs, fmt.Errorf("document %d: empty content", i))
		}
		if strings.TrimSpace(string(d.Type)) == "" {
			errs = append(errs, fmt.Errorf("document %d: empty type", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

// Result summarizes an Apply call.
type Result struct {
	Added  int
	ByType map[models.DocumentType]int
}

// Apply adds every fixture document to store. It keeps going after a failed
// document and returns all failures joined.
func Apply(ctx context.Context, store knowledge.Store, f *Fixture, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{ByType: make(map[models.DocumentType]int)}

	var errs []error
	for i, d := range f.Documents {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		doc, err := store.Add(ctx, d.Content, d.Type, d.Metadata)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %d (%s): %w", i, d.Type, err))
			continue
		}
		res.Added++
		res.ByType[d.Type]++
		logger.Debug("seeded document", "id", doc.ID, "type", d.Type)
	}

	logger.Info("seed complete", "added", res.Added, "failed", len(errs))
	return res, errors.Join(errs...)
}
