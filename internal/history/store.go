package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"memoai/internal/domain"
)

// maxEntries bounds the history file so it never grows past what the
// history view can reasonably show.
const maxEntries = 100

// FileStore persists recording history as a flat JSON array, newest first.
type FileStore struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
}

func NewFileStore(path string, log *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileStore{path: path, log: log}, nil
}

// Append puts the entry at the front of the list, replacing any earlier
// entry with the same id, and truncates to the retention bound.
func (s *FileStore) Append(entry domain.HistoryEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("history entry id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	filtered := make([]domain.HistoryEntry, 0, len(entries)+1)
	filtered = append(filtered, entry)
	for _, existing := range entries {
		if existing.ID == entry.ID {
			continue
		}
		filtered = append(filtered, existing)
	}
	if len(filtered) > maxEntries {
		filtered = filtered[:maxEntries]
	}

	return s.write(filtered)
}

func (s *FileStore) List() ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(nil)
}

// load reads the history file. A missing or corrupt file is treated as an
// empty history rather than an error; stored recordings are best-effort.
func (s *FileStore) load() []domain.HistoryEntry {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read history file", zap.String("path", s.path), zap.Error(err))
		}
		return nil
	}

	var entries []domain.HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.log.Warn("discarding corrupt history file", zap.String("path", s.path), zap.Error(err))
		return nil
	}

	valid := entries[:0]
	for _, entry := range entries {
		if entry.ID == "" || entry.CreatedAt.IsZero() {
			continue
		}
		valid = append(valid, entry)
	}
	return valid
}

func (s *FileStore) write(entries []domain.HistoryEntry) error {
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}
