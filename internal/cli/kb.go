package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/models"
	"github.com/raphaelgruber/rackcheck/internal/parser"
	"github.com/raphaelgruber/rackcheck/internal/seed"
)

var (
	kbType      string
	kbMeta      map[string]string
	kbThreshold float64
	kbTopK      int
	kbTypes     []string
	kbJSON      bool
	kbSource    string
	kbDryRun    bool
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge documents",
	Long: `Add, update, delete, inspect and search knowledge documents.

With the memory backend the store only lives for the duration of the
command; use --backend surrealdb to persist changes.`,
}

var kbAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a knowledge document",
	Long: `Add a knowledge document. The content is embedded before it is stored.

Examples:
  rackcheck kb add "H100 GPU: 15 units in Storage-A" --type inventory --meta part=H100_GPU,quantity=15
  rackcheck kb add "Pod 9 uses switch-9a" --type topology --meta pod=Pod_9`,
	Args: cobra.ExactArgs(1),
	RunE: runKBAdd,
}

var kbUpdateCmd = &cobra.Command{
	Use:   "update <id> <content>",
	Short: "Replace a document's content",
	Long: `Replace a document's content and re-embed it.

Metadata is preserved unless --meta is given, in which case it is replaced.`,
	Args: cobra.ExactArgs(2),
	RunE: runKBUpdate,
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a knowledge document",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBDelete,
}

var kbGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a knowledge document",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBGet,
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge documents",
	Args:  cobra.NoArgs,
	RunE:  runKBList,
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Similarity search over knowledge documents",
	Long: `Similarity search over knowledge documents.

Examples:
  rackcheck kb search "switch-7b location" --types switch_status,topology
  rackcheck kb search "inventory availability DAC" --threshold 0.5 --top-k 5`,
	Args: cobra.ExactArgs(1),
	RunE: runKBSearch,
}

var kbImportCmd = &cobra.Command{
	Use:   "import <manual.md>",
	Short: "Import a manual as manual_chunk documents",
	Long: `Split a Markdown manual into chunks and store them as manual_chunk documents.

Each chunk records its source and page so answers can cite them. Mark page
breaks with form feeds or "<!-- page N -->" comments. The source name comes
from --source, the frontmatter "source" or "title", or the first heading.

Examples:
  rackcheck kb import manuals/h100.md --backend surrealdb
  rackcheck kb import manuals/qsfp.md --source QSFP_Cabling_Guide --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runKBImport,
}

func init() {
	kbAddCmd.Flags().StringVarP(&kbType, "type", "t", "", "document type (inventory, topology, switch_status, manual_chunk)")
	kbAddCmd.Flags().StringToStringVarP(&kbMeta, "meta", "m", nil, "metadata as key=value pairs")
	_ = kbAddCmd.MarkFlagRequired("type")

	kbUpdateCmd.Flags().StringToStringVarP(&kbMeta, "meta", "m", nil, "replace metadata with key=value pairs")

	kbListCmd.Flags().StringVarP(&kbType, "type", "t", "", "only list this document type")

	kbSearchCmd.Flags().Float64Var(&kbThreshold, "threshold", 0.7, "minimum similarity score")
	kbSearchCmd.Flags().IntVarP(&kbTopK, "top-k", "k", 5, "maximum results")
	kbSearchCmd.Flags().StringSliceVar(&kbTypes, "types", nil, "restrict to document types")

	kbImportCmd.Flags().StringVar(&kbSource, "source", "", "citation name for the manual")
	kbImportCmd.Flags().BoolVar(&kbDryRun, "dry-run", false, "show chunks without storing them")

	for _, c := range []*cobra.Command{kbGetCmd, kbListCmd, kbSearchCmd} {
		c.Flags().BoolVar(&kbJSON, "json", false, "print JSON")
	}

	kbCmd.AddCommand(kbAddCmd, kbUpdateCmd, kbDeleteCmd, kbGetCmd, kbListCmd, kbSearchCmd, kbImportCmd)
}

// parseMetadata converts key=value flags, keeping integers and floats numeric.
func parseMetadata(raw map[string]string) map[string]any {
	if raw == nil {
		return nil
	}
	meta := make(map[string]any, len(raw))
	for k, v := range raw {
		if i, err := strconv.Atoi(v); err == nil {
			meta[k] = i
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			meta[k] = f
		} else {
			meta[k] = v
		}
	}
	return meta
}

func runKBAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	doc, err := s.Add(ctx, args[0], models.DocumentType(kbType), parseMetadata(kbMeta))
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	fmt.Printf("Added document: %s (%s)\n", doc.ID, doc.Type)
	if verbose {
		fmt.Printf("  Metadata: %v\n", doc.Metadata)
	}
	return nil
}

func runKBUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	var meta map[string]any
	if cmd.Flags().Changed("meta") {
		meta = parseMetadata(kbMeta)
	}
	doc, err := s.Update(ctx, args[0], args[1], meta)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	fmt.Printf("Updated document: %s\n", doc.ID)
	return nil
}

func runKBDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	if err := s.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	fmt.Printf("Deleted document: %s\n", args[0])
	return nil
}

func runKBGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	doc, err := s.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if kbJSON {
		return printJSON(doc)
	}
	printDocument(*doc, nil)
	return nil
}

func runKBList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if _, err := getStore(ctx); err != nil {
		return err
	}

	lister, ok := index.(knowledge.Lister)
	if !ok {
		return fmt.Errorf("backend %s cannot list documents", cfg.KnowledgeBackend)
	}
	docs, err := lister.List(ctx, models.DocumentType(kbType))
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	if kbJSON {
		return printJSON(docs)
	}
	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	for _, d := range docs {
		printDocument(d, nil)
	}
	fmt.Printf("%d document(s)\n", len(docs))
	return nil
}

func runKBSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	types := make([]models.DocumentType, 0, len(kbTypes))
	for _, t := range kbTypes {
		types = append(types, models.DocumentType(strings.TrimSpace(t)))
	}
	hits, err := s.Query(ctx, models.Query{
		Text:      args[0],
		Threshold: kbThreshold,
		TopK:      kbTopK,
		Types:     types,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if kbJSON {
		return printJSON(hits)
	}
	if len(hits) == 0 {
		fmt.Println("No documents above the similarity threshold.")
		return nil
	}
	for _, h := range hits {
		printDocument(h.Document, &h.Score)
	}
	return nil
}

func runKBImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read manual: %w", err)
	}

	manual := parser.ParseManual(string(data))
	if kbSource != "" {
		manual.Source = kbSource
	}
	if manual.Source == "" {
		manual.Source = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	chunks := parser.ChunkManual(manual, parser.DefaultChunkConfig())
	if len(chunks) == 0 {
		return fmt.Errorf("manual %s has no content", args[0])
	}

	if kbDryRun {
		for _, c := range chunks {
			fmt.Printf("[%d] %s, pg %d (%s)\n  %s\n", c.Position, c.Source, c.Page, c.Section, truncate(c.Content, 100))
		}
		fmt.Printf("%d chunk(s)\n", len(chunks))
		return nil
	}

	ctx := context.Background()
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	fixture := &seed.Fixture{Documents: make([]seed.Document, 0, len(chunks))}
	for _, c := range chunks {
		meta := map[string]any{"source": c.Source, "page": c.Page, "position": c.Position}
		if c.Section != "" {
			meta["section"] = c.Section
		}
		fixture.Documents = append(fixture.Documents, seed.Document{
			Type:     models.DocManualChunk,
			Content:  c.Content,
			Metadata: meta,
		})
	}

	res, err := seed.Apply(ctx, s, fixture, logger)
	fmt.Printf("Imported %d of %d chunk(s) from %s\n", res.Added, len(chunks), manual.Source)
	if err != nil {
		return fmt.Errorf("import manual: %w", err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
