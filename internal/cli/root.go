// Package cli provides the command-line interface for rackcheck.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/rackcheck/internal/config"
	"github.com/raphaelgruber/rackcheck/internal/db"
	"github.com/raphaelgruber/rackcheck/internal/embedding"
	"github.com/raphaelgruber/rackcheck/internal/knowledge"
	"github.com/raphaelgruber/rackcheck/internal/llm"
	"github.com/raphaelgruber/rackcheck/internal/metrics"
	"github.com/raphaelgruber/rackcheck/internal/seed"
	"github.com/raphaelgruber/rackcheck/internal/service"
)

const startupTimeout = 30 * time.Second

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose     bool
	backendFlag string

	// Global config, logging and metrics
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func() error
	collector = metrics.NewCollector()

	// Lazy-initialized components
	dbClient *db.Client
	index    knowledge.Index
	store    *knowledge.Service
	model    *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rackcheck",
	Short: "Validate datacenter work tickets against operational knowledge",
	Long: `Rackcheck validates datacenter work tickets before a technician is dispatched.

Each ticket fans out into independent checks: the claimed switch and pod are
compared against topology records, every required part is checked against
inventory, and the device's installation requirements are looked up in the
manuals. The merged report is then used to assign a P0-P4 priority.

Knowledge lives in memory (seeded with built-in fixtures) or in SurrealDB.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if backendFlag != "" {
			cfg.KnowledgeBackend = backendFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		stderrLevel := slog.LevelWarn
		if verbose {
			stderrLevel = slog.LevelDebug
		}
		logger, closeLog = config.SetupLoggerLevels(cfg.LogFile, stderrLevel, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// getStore opens the configured knowledge index and wraps it with the embedder.
// The memory backend is seeded on first use so validation works out of the box.
func getStore(ctx context.Context) (*knowledge.Service, error) {
	if store != nil {
		return store, nil
	}

	embedder, err := embedding.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	switch cfg.KnowledgeBackend {
	case config.BackendSurrealDB:
		dbClient, err = db.NewClient(ctx, db.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := dbClient.InitSchema(ctx, embedder.Dimension()); err != nil {
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		index = dbClient
		store = knowledge.NewService(embedder, index, collector, logger)

	default:
		index = knowledge.NewMemoryIndex()
		store = knowledge.NewService(embedder, index, collector, logger)
		fixture, err := loadFixture(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		if _, err := seed.Apply(ctx, store, fixture, logger); err != nil {
			return nil, fmt.Errorf("seed memory store: %w", err)
		}
	}

	return store, nil
}

// getPipeline builds the validation pipeline over the knowledge store.
func getPipeline(ctx context.Context) (*service.Pipeline, error) {
	s, err := getStore(ctx)
	if err != nil {
		return nil, err
	}
	if model == nil {
		model, err = llm.NewModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
		model.WithCollector(collector)
	}
	return service.NewPipeline(s, model, service.OptionsFrom(cfg), collector, logger), nil
}

// loadFixture returns the fixture at path, or the built-in one when empty.
func loadFixture(path string) (*seed.Fixture, error) {
	if path == "" {
		return seed.Builtin()
	}
	return seed.LoadFile(path)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "knowledge backend (memory, surrealdb); overrides RACKCHECK_KNOWLEDGE_BACKEND")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(seedCmd)
}
