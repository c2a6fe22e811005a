package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lpbacktest/internal/model"
)

// JsonlStorage writes backtest rows to a JSONL file and run summaries to a
// sibling ".runs.jsonl" file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutRows appends a batch of rows as JSON lines.
func (s *JsonlStorage) PutRows(ctx context.Context, rows []model.BacktestRow) error {
	if len(rows) == 0 {
		return nil
	}
	return appendLines(s.path, &s.mu, len(rows), func(i int) interface{} { return rows[i] })
}

// SaveRun appends the run summary.
func (s *JsonlStorage) SaveRun(ctx context.Context, run model.BacktestRun) error {
	return appendLines(s.RunsPath(), &s.mu, 1, func(int) interface{} { return run })
}

// RunsPath is where run summaries are written.
func (s *JsonlStorage) RunsPath() string {
	ext := filepath.Ext(s.path)
	return strings.TrimSuffix(s.path, ext) + ".runs.jsonl"
}

func appendLines(path string, mu *sync.Mutex, n int, item func(int) interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i := 0; i < n; i++ {
		line, err := json.Marshal(item(i))
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
