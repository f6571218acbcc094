package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a technical question from the manuals",
	Long: `Answer a technical question from manual excerpts in the knowledge store.

Retrieves the best matching manual chunks, then synthesizes a short cited
answer. When no chunk is relevant enough, says so instead of guessing.

Examples:
  rackcheck ask "How many power cables does an H100 node need?"
  rackcheck ask "Maximum DAC cable length for 800G"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pipeline, err := getPipeline(ctx)
	if err != nil {
		return err
	}

	verdict, err := pipeline.Resolver().Resolve(ctx, args[0])
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Println(verdict.Answer)
	if len(verdict.Sources) > 0 {
		fmt.Println()
		fmt.Println(defaultTheme.hintStyle().Render("Sources:"))
		for _, s := range verdict.Sources {
			fmt.Printf("  • %s\n", s)
		}
	}
	return nil
}
