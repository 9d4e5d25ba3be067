package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/abdulachik/memexplain/internal/app"
	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/meme"
	"github.com/abdulachik/memexplain/internal/pipeline"
	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain [topic]",
	Short: "Explain a meme",
	Long: `Run the scrape, curate and explain pipeline for one topic.

Example:
  memexplain explain stonks --sociolect gen-z
  memexplain explain "distracted boyfriend" --sociolect boomer --out boyfriend.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExplain,
}

var (
	explainSociolect string
	explainOut       string
)

func init() {
	explainCmd.Flags().StringVarP(&explainSociolect, "sociolect", "s", string(meme.GenZ), "target generation: boomer, gen-x, millennial or gen-z")
	explainCmd.Flags().StringVarP(&explainOut, "out", "o", "", "also write the explanation to this markdown file")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	topic := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForExplain(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	defer a.Close()

	result, err := a.Explain(ctx, topic, explainSociolect)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			return fmt.Errorf("explain %q: %s stage failed (%s): %w", topic, stageErr.Stage, stageErr.Kind, stageErr.Err)
		}
		return fmt.Errorf("explain %q: %w", topic, err)
	}

	fmt.Printf("=== %s ===\n\n", result.MemeName)
	fmt.Println(result.Explanation)
	fmt.Println()

	if explainOut != "" {
		if err := os.WriteFile(explainOut, []byte(explanationMarkdown(result, explainSociolect)), 0644); err != nil {
			return fmt.Errorf("write %s: %w", explainOut, err)
		}
		slog.Info("saved explanation", "path", explainOut)
	}

	return nil
}

func explanationMarkdown(result *pipeline.Result, sociolect string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", result.MemeName)
	fmt.Fprintf(&b, "_Explained for %s_\n\n", sociolect)
	b.WriteString(result.Explanation)
	b.WriteString("\n")
	return b.String()
}
