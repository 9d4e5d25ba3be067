package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abdulachik/memexplain/internal/app"
	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the explain and media endpoints over HTTP.

Routes:
  GET /explain/explanation?topic=...&sociolect=...
  GET /media/videos?topic=...&max_results=...
  GET /media/youtube?topic=...&max_results=...
  GET /health
  GET /metrics`,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}

	if err := cfg.ValidateForServe(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	defer a.Close()

	slog.Info("starting memexplain",
		"addr", cfg.ListenAddr,
		"pattern_store", a.Patterns.Backend(),
		"llm", a.LLM.Name(),
	)

	handler := server.NewRouter(server.Config{
		Service:  a,
		Health:   a.Health,
		Gatherer: a.Registry,
	})

	if err := server.Run(ctx, cfg.ListenAddr, handler); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	slog.Info("memexplain stopped")
	return nil
}
