// Package store persists completed dungeon runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

// ErrCorrupt reports stored data that could not be parsed.
var ErrCorrupt = errors.New("stored runs are corrupt")

// Backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Repository loads and saves completed runs. Save keeps only done runs and
// replaces whatever was stored before.
type Repository interface {
	Load(ctx context.Context) ([]model.DungeonRun, error)
	Save(ctx context.Context, runs []model.DungeonRun) error
	Close() error
}

// Open opens the repository for backend at path.
func Open(backend, path string) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendJSON:
		return NewFileStore(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// doneRuns filters runs to those with terminal status.
func doneRuns(runs []model.DungeonRun) []model.DungeonRun {
	out := make([]model.DungeonRun, 0, len(runs))
	for _, run := range runs {
		if run.Status == model.StatusDone {
			out = append(out, run)
		}
	}
	return out
}
