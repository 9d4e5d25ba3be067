package db

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/abdulachik/memexplain/internal/db/migrations"
)

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version   string
	AppliedAt time.Time
}

type migration struct {
	version string
	up      string
}

// Migrate applies the embedded migrations that are not yet recorded and
// returns their versions in order.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	return s.migrate(ctx, migrations.FS)
}

func (s *Store) migrate(ctx context.Context, fsys fs.FS) ([]string, error) {
	if _, err := s.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	done, err := s.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(done))
	for _, m := range done {
		seen[m.Version] = true
	}

	pending, err := loadMigrations(fsys)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range pending {
		if seen[m.version] {
			continue
		}
		err := s.Transact(ctx, func(q *Queries) error {
			if _, err := q.db.ExecContext(ctx, m.up); err != nil {
				return fmt.Errorf("apply %s: %w", m.version, err)
			}
			if _, err := q.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return fmt.Errorf("record %s: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied = append(applied, m.version)
	}
	return applied, nil
}

// AppliedMigrations lists recorded migrations, oldest version first.
func (s *Store) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := s.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Version, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// loadMigrations reads every .sql file in fsys, sorted by name.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		up := upSection(string(data))
		if up == "" {
			return nil, fmt.Errorf("migration %s has no statements", name)
		}
		out = append(out, migration{version: name, up: up})
	}
	return out, nil
}

// upSection returns the statements before the Down marker, without the Up
// marker line.
func upSection(content string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == downMarker {
			break
		}
		if trimmed == upMarker {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
