package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/abhisek/predtext/internal/event"
)

// FileLog appends events to a newline-delimited JSON file, the format the
// analyzer reads. Each Append is synced before it returns.
type FileLog struct {
	mu sync.Mutex
	f  *os.File
	w  *event.Writer
}

// OpenFileLog opens path for appending, creating it and its directory.
func OpenFileLog(path string) (*FileLog, error) {
	if err := EnsureDir(path); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileLog{f: f, w: event.NewWriter(f)}, nil
}

// Append writes ev as one line.
func (l *FileLog) Append(_ context.Context, ev event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Write(ev); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Type, err)
	}
	return l.f.Sync()
}

// Close closes the file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
