package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"pairEngine/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.jsonl")
	s := NewJsonlStorage(path)
	ctx := context.Background()

	if err := s.PutLogBatch(ctx, []model.LogRecord{{BlockNumber: 1}, {BlockNumber: 2}}); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if err := s.PutLogBatch(ctx, []model.LogRecord{{BlockNumber: 3}}); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if err := s.PutLogBatch(ctx, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var blocks []uint64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.LogRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		blocks = append(blocks, record.BlockNumber)
	}
	if len(blocks) != 3 || blocks[0] != 1 || blocks[2] != 3 {
		t.Fatalf("unexpected blocks %v", blocks)
	}
}

func TestMemoryStorageCopies(t *testing.T) {
	var m MemoryStorage
	_ = m.PutLogBatch(context.Background(), []model.LogRecord{{LogIndex: 4}})
	logs := m.Logs()
	logs[0].LogIndex = 9
	if m.Logs()[0].LogIndex != 4 {
		t.Fatalf("logs not copied")
	}
}

func TestMemoryStorageIgnoresDuplicates(t *testing.T) {
	var m MemoryStorage
	ctx := context.Background()
	_ = m.PutLogBatch(ctx, []model.LogRecord{{TxHash: "0x01", LogIndex: 0}, {TxHash: "0x01", LogIndex: 1}})
	_ = m.PutLogBatch(ctx, []model.LogRecord{{TxHash: "0x01", LogIndex: 1, Data: "0xff"}})
	logs := m.Logs()
	if len(logs) != 2 || logs[1].Data != "" {
		t.Fatalf("logs: %+v", logs)
	}
}
