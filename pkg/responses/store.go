package responses

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

const defaultTablePath = "defaults/responses.yaml"

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Store holds the active response table and swaps it atomically on reload.
type Store struct {
	path    string
	static  bool
	current atomic.Pointer[Table]
}

// NewStore loads the table at path, or the built-in table when path is empty.
func NewStore(path string) (*Store, error) {
	s := &Store{path: strings.TrimSpace(path)}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// NewStaticStore serves a fixed table that Reload keeps as is.
func NewStaticStore(table *Table) *Store {
	s := &Store{static: true}
	s.current.Store(table)
	return s
}

// Current returns the active table.
func (s *Store) Current() *Table {
	return s.current.Load()
}

// Path returns the configured table file, empty for the built-in table.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the table. On failure the previous table stays active.
func (s *Store) Reload() (*Table, error) {
	if s.static {
		return s.Current(), nil
	}

	table, err := Load(s.path)
	if err != nil {
		return nil, err
	}

	s.current.Store(table)
	return table, nil
}

// Load reads and parses a table file; an empty path selects the built-in table.
func Load(path string) (*Table, error) {
	var (
		content []byte
		err     error
	)

	if path == "" {
		content, err = defaultsFS.ReadFile(defaultTablePath)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read response table: %w", err)
	}

	table, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("load response table %s: %w", displayPath(path), err)
	}

	return table, nil
}

func displayPath(path string) string {
	if path == "" {
		return "(built-in)"
	}

	return path
}
