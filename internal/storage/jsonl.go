package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pairEngine/internal/model"
)

// JsonlStorage appends records to a JSONL file. One instance per file; it
// serves as a Storage, MetricsSink or SnapshotSink depending on what the
// caller writes to it.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) Path() string { return s.path }

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	return appendLines(s, logs)
}

// UpsertWindowMetrics appends metrics rows. Later rows for the same window win
// when the file is read back.
func (s *JsonlStorage) UpsertWindowMetrics(_ context.Context, metrics []model.PairWindowMetrics) error {
	return appendLines(s, metrics)
}

func (s *JsonlStorage) UpsertPairSnapshots(_ context.Context, snapshots []model.PairSnapshot) error {
	return appendLines(s, snapshots)
}

func appendLines[T any](s *JsonlStorage, records []T) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// MemoryStorage keeps log records in memory. Like the pair_logs table it
// ignores a log it already holds.
type MemoryStorage struct {
	mu   sync.Mutex
	logs []model.LogRecord
	seen map[string]struct{}
}

func (m *MemoryStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = make(map[string]struct{})
	}
	for _, lr := range logs {
		if _, ok := m.seen[lr.Key()]; ok {
			continue
		}
		m.seen[lr.Key()] = struct{}{}
		m.logs = append(m.logs, lr)
	}
	return nil
}

// Logs returns a copy of the stored records.
func (m *MemoryStorage) Logs() []model.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LogRecord, len(m.logs))
	copy(out, m.logs)
	return out
}
