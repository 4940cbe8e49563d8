package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// jsonlWriter writes one JSON value per line to a truncated file.
type jsonlWriter struct {
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	buf := bufio.NewWriter(file)
	return &jsonlWriter{file: file, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	if err := w.enc.Encode(value); err != nil {
		return fmt.Errorf("write %s: %w", w.file.Name(), err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	if err := w.file.Close(); err != nil {
		return err
	}
	return flushErr
}
