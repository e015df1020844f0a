// Package store persists one flat, human-editable record per session. It is
// deliberately not a database: the only operation atomic under concurrent
// callers is Reserve (exclusive create), which is what keeps two concurrent
// spawns from colliding on an ID. Everything else is read-modify-write,
// serialized per session ID by the store's own locks.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	droverrors "github.com/drover-dev/drover/internal/errors"
	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/internal/session"
)

const recordExt = ".session"

// Store is the durable session record store rooted at a state directory.
//
// Two on-disk layouts are readable for backward compatibility:
//
//	<root>/sessions/<id>.session                     (current, written)
//	<root>/projects/<project>/sessions/<id>.session  (legacy, read-only)
type Store struct {
	root string
	log  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// DefaultRoot returns the default state directory (~/.drover).
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".drover"), nil
}

// New creates a store rooted at the given directory.
func New(root string) *Store {
	return &Store{
		root:  root,
		log:   logger.ComponentLogger("store"),
		locks: make(map[string]*sync.Mutex),
	}
}

// Root returns the state directory the store is rooted at.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) flatPath(id string) string {
	return filepath.Join(s.root, "sessions", id+recordExt)
}

func (s *Store) legacyGlob() string {
	return filepath.Join(s.root, "projects", "*", "sessions", "*"+recordExt)
}

// findPath returns the existing record path for id, checking the flat layout
// first and the legacy project-scoped layout second. Empty if absent.
func (s *Store) findPath(id string) string {
	flat := s.flatPath(id)
	if _, err := os.Stat(flat); err == nil {
		return flat
	}

	matches, err := filepath.Glob(filepath.Join(s.root, "projects", "*", "sessions", id+recordExt))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// Lock acquires the per-ID mutex and returns its unlock function. Callers
// doing a read-compute-write sequence hold this for the whole sequence;
// Update acquires it internally for single-field merges.
func (s *Store) Lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Reserve creates the record for id using an exclusive create. It returns
// true iff this caller created it; false (no error) if it already existed.
// This is the only store operation guaranteed atomic under concurrency.
func (s *Store) Reserve(id string) (bool, error) {
	dir := filepath.Join(s.root, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	// The legacy layout may still hold this ID; treat that as taken.
	if matches, _ := filepath.Glob(filepath.Join(s.root, "projects", "*", "sessions", id+recordExt)); len(matches) > 0 {
		return false, nil
	}

	f, err := os.OpenFile(s.flatPath(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to reserve session %s: %w", id, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "# reserved %s\n%s=%s\n", time.Now().UTC().Format(time.RFC3339), session.FieldID, id)
	return true, nil
}

// Read returns the parsed record, or (nil, nil) if no record exists in either
// layout. A corrupt record (parseable as no fields at all) is logged and
// reported as a StaleRecord error; callers treat it as absent.
func (s *Store) Read(id string) (Record, error) {
	path := s.findPath(id)
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session record %s: %w", id, err)
	}

	rec := Unmarshal(data)
	if len(rec) == 0 || rec[session.FieldID] == "" {
		s.log.Warn("stale session record, treating as absent", "id", id, "path", path)
		return nil, droverrors.StaleRecord(id, fmt.Errorf("no parseable fields in %s", path))
	}
	return rec, nil
}

// Write overwrites the full record for id in the current layout. The write
// itself is atomic on the file (temp file + rename) so a crash never leaves
// a half-written record, but it is not serialized against other writers;
// use Update or hold Lock for read-modify-write.
func (s *Store) Write(id string, rec Record) error {
	dir := filepath.Join(s.root, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	path := s.flatPath(id)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, Marshal(rec), 0o644); err != nil {
		return fmt.Errorf("failed to write session record %s: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename session record %s: %w", id, err)
	}
	return nil
}

// Update merges the partial fields into the existing record under the per-ID
// lock. Fields set to the empty string are removed. Returns NotFound if the
// record does not exist.
func (s *Store) Update(id string, partial Record) error {
	unlock := s.Lock(id)
	defer unlock()
	return s.updateLocked(id, partial)
}

// UpdateLocked merges fields for callers that already hold Lock(id) for a
// longer read-compute-write sequence.
func (s *Store) UpdateLocked(id string, partial Record) error {
	return s.updateLocked(id, partial)
}

func (s *Store) updateLocked(id string, partial Record) error {
	rec, err := s.Read(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return droverrors.SessionNotFound("store.Update", id)
	}

	for key, value := range partial {
		if value == "" {
			delete(rec, key)
		} else {
			rec[key] = value
		}
	}
	return s.Write(id, rec)
}

// Delete removes the record from both layouts. With archive set (the
// default for session teardown) the record is first copied to the archive
// area with a timestamp suffix rather than discarded.
func (s *Store) Delete(id string, archive bool) error {
	path := s.findPath(id)
	if path == "" {
		return droverrors.SessionNotFound("store.Delete", id)
	}

	if archive {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read session record for archival: %w", err)
		}
		archiveDir := filepath.Join(s.root, "archive")
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return fmt.Errorf("failed to create archive directory: %w", err)
		}
		archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s.%d%s", id, time.Now().Unix(), recordExt))
		if err := os.WriteFile(archivePath, data, 0o644); err != nil {
			return fmt.Errorf("failed to archive session record %s: %w", id, err)
		}
		s.log.Info("archived session record", "id", id, "path", archivePath)
	}

	// Remove from both layouts; the same ID may exist in each after a
	// migration that was interrupted partway.
	removed := false
	for _, p := range []string{s.flatPath(id)} {
		if err := os.Remove(p); err == nil {
			removed = true
		}
	}
	if matches, _ := filepath.Glob(filepath.Join(s.root, "projects", "*", "sessions", id+recordExt)); len(matches) > 0 {
		for _, p := range matches {
			if err := os.Remove(p); err == nil {
				removed = true
			}
		}
	}
	if !removed {
		return droverrors.SessionNotFound("store.Delete", id)
	}
	return nil
}

// List enumerates all known session IDs across both layouts, deduplicated
// and sorted.
func (s *Store) List() ([]string, error) {
	seen := make(map[string]bool)

	entries, err := os.ReadDir(filepath.Join(s.root, "sessions"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list sessions directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) || strings.HasSuffix(name, ".tmp") {
			continue
		}
		seen[strings.TrimSuffix(name, recordExt)] = true
	}

	matches, err := filepath.Glob(s.legacyGlob())
	if err != nil {
		return nil, fmt.Errorf("failed to glob legacy sessions: %w", err)
	}
	for _, match := range matches {
		seen[strings.TrimSuffix(filepath.Base(match), recordExt)] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
