package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdulachik/memexplain/internal/app"
	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pattern store and history statistics",
	Long:  `Display pattern counts per sociolect and how many explanations have been recorded.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForPatternStore(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	history, err := app.OpenHistory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer history.Close()

	emb := app.NewEmbedder(cfg)
	patterns, err := app.OpenPatternStore(ctx, cfg, emb)
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}

	a := &app.App{
		Config:   cfg,
		History:  history,
		Patterns: patterns,
		Health:   app.NewHealth(),
	}
	defer patterns.Close()
	app.CheckEmbedder(ctx, emb, a.Health)

	stats, err := a.Stats(ctx)
	if err != nil {
		slog.Warn("failed to gather stats", "error", err)
		return err
	}

	// Catalog rows exist only for the embedded backend.
	catalog, err := history.CountPatternsBySociolect(ctx)
	if err != nil {
		slog.Debug("no pattern catalog in history database", "error", err)
	}

	fmt.Println("=== memexplain Statistics ===")
	fmt.Println()
	fmt.Printf("Database: %s\n", cfg.DatabasePath)
	fmt.Printf("Pattern store: %s\n", stats.Backend)
	fmt.Println()
	fmt.Println("Patterns:")
	total := 0
	for _, s := range meme.Sociolects {
		fmt.Printf("  %-10s %d\n", s, stats.Patterns[s])
		total += stats.Patterns[s]
	}
	fmt.Printf("  %-10s %d\n", "total", total)
	fmt.Println()

	if len(catalog) > 0 {
		fmt.Println("Catalog (history database):")
		for _, row := range catalog {
			fmt.Printf("  %-10s %d\n", row.Sociolect, row.Count)
		}
		fmt.Println()
	}

	fmt.Println("Activity:")
	fmt.Printf("  Explanations recorded: %d\n", stats.Explanations)
	fmt.Println()

	fmt.Println("Health:")
	for _, name := range a.Health.Components() {
		status := a.Health.GetStatus(name)
		state := "healthy"
		if !status.Healthy {
			state = "unhealthy"
		}
		fmt.Printf("  %-14s %s  %s\n", name, state, status.Message)
	}
	return nil
}
