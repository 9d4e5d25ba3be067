package vectorstore

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/abdulachik/memexplain/internal/meme"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed maps each sociolect to the patterns that should exist for it.
type Seed map[meme.Sociolect][]meme.PatternInput

// DefaultSeed returns the built-in patterns for all four sociolects.
func DefaultSeed() (Seed, error) {
	return ParseSeed(defaultSeed)
}

// LoadSeedFile reads a YAML seed file.
func LoadSeedFile(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML keyed by sociolect. Keys go through
// meme.ParseSociolect, so aliases are accepted.
func ParseSeed(data []byte) (Seed, error) {
	var raw map[string][]meme.PatternInput
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	seed := make(Seed, len(raw))
	for key, patterns := range raw {
		sl, err := meme.ParseSociolect(key)
		if err != nil {
			return nil, fmt.Errorf("parse seed: %w", err)
		}
		seed[sl] = append(seed[sl], patterns...)
	}
	return seed, nil
}

// SeedOptions controls Seed.
type SeedOptions struct {
	// OnlyEmpty skips partitions that already hold patterns.
	OnlyEmpty bool
}

// Seed adds the seed patterns partition by partition, in canonical sociolect
// order. Duplicates are skipped by AddPatterns, so re-running is safe.
func (s *PatternStore) Seed(ctx context.Context, seed Seed, opts SeedOptions) (map[meme.Sociolect]int, error) {
	added := make(map[meme.Sociolect]int, len(seed))

	for _, sl := range meme.Sociolects {
		patterns, ok := seed[sl]
		if !ok {
			continue
		}

		if opts.OnlyEmpty {
			existing, err := s.AllPatterns(ctx, sl)
			if err != nil {
				return added, fmt.Errorf("list %s: %w", sl, err)
			}
			if len(existing) > 0 {
				slog.Debug("partition already seeded", "sociolect", sl, "patterns", len(existing))
				continue
			}
		}

		n, err := s.AddPatterns(ctx, sl, patterns)
		if err != nil {
			return added, fmt.Errorf("seed %s: %w", sl, err)
		}
		added[sl] = n

		slog.Info("seeded language patterns", "sociolect", sl, "added", n, "total", len(patterns))
	}

	return added, nil
}
