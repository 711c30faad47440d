package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/i474232898/snowfall-bets/internal/estimator"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// FileStateStore persists the estimator state as a single JSON document.
// Writes go to a temp file in the same directory which is then renamed over
// the target, so a crash leaves either the old or the new record.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStateStore creates a store that reads/writes JSON at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: filepath.Clean(path)}
}

// Path returns the state file location.
func (s *FileStateStore) Path() string {
	return s.path
}

// Load reads the state from disk.
func (s *FileStateStore) Load(_ context.Context) (estimator.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return estimator.State{}, estimator.ErrNotFound
		}
		return estimator.State{}, fmt.Errorf("read state file: %w", err)
	}

	var raw struct {
		TotalAccumulated *float64  `json:"totalAccumulated"`
		LastReading      *float64  `json:"lastReading"`
		UpdatedAt        time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(contents, &raw); err != nil {
		return estimator.State{}, fmt.Errorf("%w: %v", estimator.ErrMalformedState, err)
	}
	if raw.TotalAccumulated == nil || raw.LastReading == nil {
		return estimator.State{}, fmt.Errorf("%w: missing fields", estimator.ErrMalformedState)
	}

	st := estimator.State{
		TotalAccumulated: *raw.TotalAccumulated,
		LastReading:      *raw.LastReading,
		UpdatedAt:        raw.UpdatedAt,
	}
	if err := st.Validate(); err != nil {
		return estimator.State{}, err
	}
	return st, nil
}

// Save atomically replaces the state file.
func (s *FileStateStore) Save(_ context.Context, state estimator.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Remove deletes the persisted state so the next start begins from zero.
func (s *FileStateStore) Remove(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
