package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/rackcheck/internal/config"
	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/models"
	"github.com/raphaelgruber/rackcheck/internal/seed"
)

var seedReset bool

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load knowledge fixtures",
	Long: `Load knowledge fixtures into the store.

Without a file the built-in datacenter fixtures are loaded: inventory,
topology, switch status and manual excerpts. Use --reset to delete every
existing document first.

Examples:
  rackcheck seed --backend surrealdb
  rackcheck seed fixtures/pod9.yaml --backend surrealdb --reset`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "delete existing documents before seeding")
}

func runSeed(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	fixture, err := loadFixture(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := getStore(ctx)
	if err != nil {
		return err
	}

	// The memory backend was seeded on open; start over to avoid duplicates.
	if seedReset || cfg.KnowledgeBackend == config.BackendMemory {
		wiper, ok := index.(knowledge.Wiper)
		if !ok {
			return fmt.Errorf("backend %s cannot be reset", cfg.KnowledgeBackend)
		}
		if err := wiper.WipeData(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
	}

	res, err := seed.Apply(ctx, s, fixture, logger)
	printSeedResult(res)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if cfg.KnowledgeBackend == config.BackendMemory {
		fmt.Println(defaultTheme.hintStyle().Render("memory backend: documents are discarded when the command exits"))
	}
	return nil
}

func printSeedResult(res seed.Result) {
	fmt.Print(defaultTheme.completedStyle().Render(fmt.Sprintf("✓ Seeded %d document(s)", res.Added)) + "\n")
	types := make([]models.DocumentType, 0, len(res.ByType))
	for t := range res.ByType {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		fmt.Printf("  %-14s %d\n", t, res.ByType[t])
	}
}
