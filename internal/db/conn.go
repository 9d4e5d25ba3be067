// Package db holds the SQLite storage shared by the explanation history and
// the embedded pattern catalog.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CatalogFile is the database file the embedded pattern store keeps inside
// its persist directory.
const CatalogFile = "catalog.db"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Store is a SQLite database with its queries.
type Store struct {
	*sql.DB
	*Queries
	path string
}

// Connect opens the database at path without touching its schema.
func Connect(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One writer at a time, and ":memory:" is per connection.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &Store{DB: sqlDB, Queries: New(sqlDB), path: path}, nil
}

// Open connects to path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	store, err := Connect(ctx, path)
	if err != nil {
		return nil, err
	}

	applied, err := store.Migrate(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(applied) > 0 {
		slog.Info("database migrated", "path", path, "applied", applied)
	}
	return store, nil
}

// OpenCatalog opens the pattern catalog owned by the embedded store at dir.
func OpenCatalog(ctx context.Context, dir string) (*Store, error) {
	return Open(ctx, filepath.Join(dir, CatalogFile))
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Transact runs fn inside a transaction. fn's error rolls it back.
func (s *Store) Transact(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(s.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
