package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdulachik/memexplain/internal/app"
	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/abdulachik/memexplain/internal/vectorstore"
	"github.com/spf13/cobra"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns [sociolect] [query]",
	Short: "List or search language patterns",
	Long: `Without a query, list every pattern stored for the sociolect.
With a query, show the nearest patterns, as used to ground explanations.

Example:
  memexplain patterns gen-z
  memexplain patterns millennial "stock market" -k 3 --category phrase`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPatterns,
}

var (
	patternsK        int
	patternsCategory string
	patternsContext  bool
)

func init() {
	patternsCmd.Flags().IntVarP(&patternsK, "top-k", "k", 0, "number of results for a query (default: PATTERN_COUNT)")
	patternsCmd.Flags().StringVar(&patternsCategory, "category", "", "only patterns of this category (phrase, keyword, tone, general)")
	patternsCmd.Flags().BoolVar(&patternsContext, "context", false, "print the formatted prompt context instead of a table")
	rootCmd.AddCommand(patternsCmd)
}

func runPatterns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sociolect, err := meme.ParseSociolect(args[0])
	if err != nil {
		return err
	}
	query := strings.Join(args[1:], " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForPatternStore(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := app.OpenPatternStore(ctx, cfg, app.NewEmbedder(cfg))
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	defer store.Close()

	k := patternsK
	if k <= 0 {
		k = cfg.PatternCount
	}

	var patterns []meme.LanguagePattern
	if query != "" {
		patterns, err = store.QueryCategory(ctx, sociolect, query, k, meme.Category(patternsCategory))
	} else {
		patterns, err = store.AllPatterns(ctx, sociolect)
		if err == nil && patternsCategory != "" {
			patterns = filterCategory(patterns, meme.Category(patternsCategory))
		}
	}
	if err != nil {
		return err
	}

	if patternsContext {
		fmt.Println(vectorstore.FormatContext(sociolect, patterns))
		return nil
	}

	if len(patterns) == 0 {
		fmt.Printf("No patterns stored for %s.\n", sociolect)
		return nil
	}

	fmt.Printf("=== %s patterns (%s) ===\n\n", sociolect, store.Backend())
	for i, p := range patterns {
		if query != "" {
			fmt.Printf("%d. [%.3f] %s\n", i+1, p.Score, p.Text)
		} else {
			fmt.Printf("%d. %s\n", i+1, p.Text)
		}
		fmt.Printf("   category: %s", p.Category)
		if p.Context != "" {
			fmt.Printf("  context: %s", p.Context)
		}
		fmt.Println()
	}
	return nil
}

func filterCategory(patterns []meme.LanguagePattern, category meme.Category) []meme.LanguagePattern {
	out := patterns[:0]
	for _, p := range patterns {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

var patternsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every pattern of one sociolect",
	Long: `Delete the whole partition for a sociolect. Seeding skips text that is
already stored, so clearing is how a pattern's category or context gets
corrected.

Example:
  memexplain patterns clear --sociolect gen-z --reseed`,
	Args: cobra.NoArgs,
	RunE: runPatternsClear,
}

var (
	clearSociolect string
	clearReseed    bool
)

func init() {
	patternsClearCmd.Flags().StringVarP(&clearSociolect, "sociolect", "s", "", "sociolect to clear")
	patternsClearCmd.Flags().BoolVar(&clearReseed, "reseed", false, "seed the built-in patterns again after clearing")
	_ = patternsClearCmd.MarkFlagRequired("sociolect")
	patternsCmd.AddCommand(patternsClearCmd)
}

func runPatternsClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sociolect, err := meme.ParseSociolect(clearSociolect)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForSeed(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := app.OpenPatternStore(ctx, cfg, app.NewEmbedder(cfg))
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	defer store.Close()

	removed, err := store.Clear(ctx, sociolect)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d %s patterns from %s.\n", removed, sociolect, store.Backend())

	if !clearReseed {
		return nil
	}

	seed, err := vectorstore.DefaultSeed()
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	added, err := store.AddPatterns(ctx, sociolect, seed[sociolect])
	if err != nil {
		return fmt.Errorf("reseed: %w", err)
	}
	fmt.Printf("Seeded %d %s patterns.\n", added, sociolect)
	return nil
}
