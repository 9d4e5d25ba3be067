package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdulachik/memexplain/internal/app"
	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/abdulachik/memexplain/internal/vectorstore"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load language patterns into the pattern store",
	Long: `Add language patterns for each sociolect. Patterns already present are
skipped, so seeding is safe to re-run.

Without --file the built-in patterns are used. A seed file is YAML keyed by
sociolect:

  gen-z:
    - text: "no cap"
      category: phrase
      context: "emphasizing truth"`,
	RunE: runSeed,
}

var (
	seedFile      string
	seedOnlyEmpty bool
)

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed file (default: built-in patterns)")
	seedCmd.Flags().BoolVar(&seedOnlyEmpty, "only-empty", false, "skip sociolects that already have patterns")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForSeed(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	var seed vectorstore.Seed
	if seedFile != "" {
		seed, err = vectorstore.LoadSeedFile(seedFile)
	} else {
		seed, err = vectorstore.DefaultSeed()
	}
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}

	patterns, err := app.OpenPatternStore(ctx, cfg, app.NewEmbedder(cfg))
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	defer patterns.Close()

	slog.Info("seeding language patterns", "backend", patterns.Backend(), "file", seedFile)

	added, err := patterns.Seed(ctx, seed, vectorstore.SeedOptions{OnlyEmpty: seedOnlyEmpty})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	for _, s := range meme.Sociolects {
		if _, ok := seed[s]; !ok {
			continue
		}
		fmt.Printf("  %-10s %d added (%d in seed)\n", s, added[s], len(seed[s]))
	}
	return nil
}
