package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"henkbot/pkg/message"
)

// ErrClosed reports a write to a closed store.
var ErrClosed = errors.New("store is closed")

// JSONL appends one JSON record per line to a log file.
type JSONL struct {
	path string

	mu     sync.Mutex
	file   *os.File
	closed bool

	now func() time.Time
}

// NewJSONL opens (or creates) the log at path.
func NewJSONL(path string) (*JSONL, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("message log path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create message log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open message log: %w", err)
	}

	return &JSONL{path: path, file: file, now: time.Now}, nil
}

// Path returns the log file location.
func (s *JSONL) Path() string {
	return s.path
}

// Persist appends msg as one line.
func (s *JSONL) Persist(_ context.Context, msg message.Message) error {
	data, err := json.Marshal(NewRecord(msg, s.now()))
	if err != nil {
		return fmt.Errorf("encode message record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("append message record: %w", err)
	}

	return nil
}

// Close flushes and closes the log. It is safe to call more than once.
func (s *JSONL) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("sync message log: %w", err)
	}

	return s.file.Close()
}
