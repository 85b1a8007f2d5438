package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

// FileStore keeps done runs as a JSON array in a single file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("runs file path is empty")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored runs. A missing file yields no runs and no error; a
// file that does not parse yields ErrCorrupt.
func (s *FileStore) Load(_ context.Context) ([]model.DungeonRun, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open runs file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only runs file.
			_ = cerr
		}
	}()

	var runs []model.DungeonRun
	if err := json.NewDecoder(bufio.NewReader(file)).Decode(&runs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return runs, nil
}

// Save writes the done runs, replacing the file.
func (s *FileStore) Save(_ context.Context, runs []model.DungeonRun) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create runs dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(s.path), "runs-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp runs file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	if err := json.NewEncoder(writer).Encode(doneRuns(runs)); err != nil {
		return fmt.Errorf("failed to encode runs: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush runs file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close runs file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to write runs file: %w", err)
	}
	return nil
}

// Close implements Repository.
func (s *FileStore) Close() error {
	return nil
}
