// Package file implements the processed-notice cache as a JSON-lines
// file. Marks are appended; on load, the last line per notice wins.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/clearbridge/oppgraph/pkg/cache"
	"github.com/clearbridge/oppgraph/pkg/common"
	"github.com/clearbridge/oppgraph/pkg/logger"
)

// FileStore implements cache.Store on an append-only JSON-lines file.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]cache.Entry
}

// NewFileStore opens (or creates) the cache file at path and loads its
// entries. Loading fails soft: lines that do not parse are skipped with
// a warning, since losing a cache mark only costs a redundant
// graph-existence check, never correctness.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		entries: make(map[string]cache.Entry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	skipped := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry cache.Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.NoticeID == "" {
			skipped++
			continue
		}
		s.entries[entry.NoticeID] = entry
	}
	if skipped > 0 {
		logger.Warn("[Cache] Skipped unreadable cache lines", "path", s.path, "skipped", skipped)
	}
	// A torn final line from a crash mid-append surfaces as a scanner
	// error; the entries read so far are still good.
	if err := scanner.Err(); err != nil {
		logger.Warn("[Cache] Cache file truncated mid-read, continuing with partial load",
			"path", s.path, "error", err)
	}
	return nil
}

func (s *FileStore) HasProcessed(ctx context.Context, noticeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[noticeID]
	return ok && entry.Outcome == common.OutcomeProcessed, nil
}

func (s *FileStore) MarkProcessed(ctx context.Context, noticeID string, outcome common.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := cache.Entry{
		NoticeID: noticeID,
		Outcome:  outcome,
		MarkedAt: time.Now().UTC(),
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}

	s.entries[noticeID] = entry
	return nil
}

func (s *FileStore) Get(ctx context.Context, noticeID string) (cache.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[noticeID]
	return entry, ok, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Truncate(s.path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	s.entries = make(map[string]cache.Entry)
	return nil
}

func (s *FileStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries), nil
}
