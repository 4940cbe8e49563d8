package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the last processed timestamp.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// StateRows stores named progress rows; postgres.Store implements it.
type StateRows interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, ts uint64) error
}

// DBStateStore keeps progress in a StateRows table under Name.
type DBStateStore struct {
	Rows StateRows
	Name string
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Rows == nil {
		return 0, false, nil
	}
	ts, ok, err := s.Rows.LoadState(ctx, s.Name)
	if err != nil {
		return 0, false, fmt.Errorf("load state %s: %w", s.Name, err)
	}
	return ts, ok, nil
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Rows == nil {
		return nil
	}
	if err := s.Rows.SaveState(ctx, s.Name, ts); err != nil {
		return fmt.Errorf("save state %s: %w", s.Name, err)
	}
	return nil
}

// FileStateStore keeps the progress of several aggregators, keyed by Name,
// in one JSON file.
type FileStateStore struct {
	Path string
	Name string
}

type stateEntry struct {
	LastProcessed uint64    `json:"last_processed_ts"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *FileStateStore) Load(_ context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	entries, err := s.read()
	if err != nil {
		return 0, false, err
	}
	entry, ok := entries[s.Name]
	return entry.LastProcessed, ok, nil
}

// Save rewrites the file through a temporary sibling so a crash never leaves
// it half written.
func (s *FileStateStore) Save(_ context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[s.Name] = stateEntry{LastProcessed: ts, UpdatedAt: time.Now().UTC()}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("create state tmp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state tmp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStateStore) read() (map[string]stateEntry, error) {
	entries := make(map[string]stateEntry)
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return entries, nil
}
