package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/abdulachik/memexplain/internal/config"
	"github.com/abdulachik/memexplain/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations",
	Long: `Apply pending migrations to the explanation history database and, for the
embedded pattern store, to its catalog. Both are also migrated on open, so
this is only needed to upgrade ahead of time or to inspect versions.`,
	RunE: runMigrate,
}

var migrateStatusOnly bool

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "list applied migrations without applying new ones")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	paths := []string{cfg.DatabasePath}
	if cfg.PatternStoreBackend == "" || cfg.PatternStoreBackend == "embedded" {
		paths = append(paths, filepath.Join(cfg.PatternStorePath, db.CatalogFile))
	}

	for _, path := range paths {
		if err := migrateOne(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func migrateOne(ctx context.Context, path string) error {
	store, err := db.Connect(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("%s\n", path)

	if !migrateStatusOnly {
		applied, err := store.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", path, err)
		}
		if len(applied) == 0 {
			fmt.Println("  up to date")
		}
		for _, version := range applied {
			fmt.Printf("  applied %s\n", version)
		}
		return nil
	}

	recorded, err := store.AppliedMigrations(ctx)
	if err != nil {
		fmt.Println("  no migrations recorded")
		return nil
	}
	for _, m := range recorded {
		fmt.Printf("  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
