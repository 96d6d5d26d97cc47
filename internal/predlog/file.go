package predlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileLogger appends entries to a single JSON-lines file. The file is opened
// in append mode for every batch and never truncated, so external rotation
// is safe. Each batch is written with one write call.
type FileLogger struct {
	path string
	mu   sync.Mutex
}

// NewFileLogger creates a logger writing to path. Parent directories are
// created on first use.
func NewFileLogger(path string) *FileLogger {
	return &FileLogger{path: path}
}

// Path returns the log file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Log implements Logger.
func (l *FileLogger) Log(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, e := range entries {
		// Encode terminates each record with '\n'
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode prediction log entry for listing %d: %w", e.ListingID, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create prediction log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open prediction log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to write prediction log: %w", err)
	}
	return f.Close()
}
