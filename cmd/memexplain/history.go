package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdulachik/memexplain/internal/app"
	"github.com/abdulachik/memexplain/internal/config"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent explanations",
	RunE:  runHistory,
}

var (
	historyLimit int
	historyFull  bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of explanations to show")
	historyCmd.Flags().BoolVar(&historyFull, "full", false, "print full explanation text")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := app.OpenHistory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	rows, err := store.ListRecentExplanations(ctx, int64(historyLimit))
	if err != nil {
		return fmt.Errorf("list explanations: %w", err)
	}

	if len(rows) == 0 {
		fmt.Println("No explanations recorded yet.")
		return nil
	}

	for _, row := range rows {
		fmt.Printf("[%s] %s for %s (topic %q)\n", row.CreatedAt.Format("2006-01-02 15:04"), row.MemeName, row.Sociolect, row.Topic)

		var sources []string
		if err := json.Unmarshal([]byte(row.Sources), &sources); err == nil && len(sources) > 0 {
			fmt.Printf("  sources: %s\n", strings.Join(sources, ", "))
		}

		text := row.Explanation
		if !historyFull {
			text = preview(text, 160)
		}
		fmt.Printf("  %s\n\n", strings.ReplaceAll(text, "\n", "\n  "))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
