// Package storage persists the results of a sweep.
//
// Two collaborators live here: the JSON output file that every run writes,
// and the optional run archive (a SQLite database) that keeps run history,
// the per-prefix query log and the discovered items.
package storage

import (
	"context"
	"os"

	"github.com/steveyegge/acsweep/internal/storage/sqlite"
	"github.com/steveyegge/acsweep/internal/types"
)

// Archive records runs for later inspection
type Archive interface {
	// Runs
	CreateRun(ctx context.Context, run *types.Run) error
	FinishRun(ctx context.Context, run *types.Run) error
	GetRun(ctx context.Context, id string) (*types.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*types.Run, error)

	// Per-prefix query log
	RecordQuery(ctx context.Context, q *types.QueryRecord) error
	GetQueries(ctx context.Context, runID string) ([]*types.QueryRecord, error)

	// Discovered items
	SaveItems(ctx context.Context, runID string, items []string) error
	GetItems(ctx context.Context, runID string) ([]string, error)

	// Lifecycle
	Close() error
}

// Config holds archive configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".acsweep/runs.db", or ACSWEEP_ARCHIVE_PATH when set
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultArchivePath is used when no archive path is configured
const DefaultArchivePath = ".acsweep/runs.db"

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	if p := os.Getenv("ACSWEEP_ARCHIVE_PATH"); p != "" {
		return &Config{Path: p}
	}
	return &Config{Path: DefaultArchivePath}
}

// NewArchive opens the SQLite archive described by cfg
func NewArchive(ctx context.Context, cfg *Config) (Archive, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultArchivePath
	}
	return sqlite.New(cfg.Path)
}
