package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

const (
	DefaultStorageFileName = ".dai-supply-journal.json"
)

// Storage handles persistence of journal entries. Every mutation re-reads the file
// under an exclusive lock file, so several processes can share one journal.
type Storage struct {
	filePath string
	fileLock *flock.Flock
	mu       sync.RWMutex
	entries  map[string]*Entry
}

// fileFormat represents the JSON structure for storage
type fileFormat struct {
	Entries map[string]*Entry `json:"entries"`
}

// NewStorage creates a new storage instance
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	storage := &Storage{
		filePath: filePath,
		fileLock: flock.New(filePath + ".lock"),
		entries:  make(map[string]*Entry),
	}

	if err := storage.Reload(); err != nil {
		return nil, err
	}

	return storage, nil
}

// Reload replaces the in-memory entries with what is on disk
func (s *Storage) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile(true); err != nil {
		return err
	}
	defer s.fileLock.Unlock()

	return s.loadLocked()
}

// lockFile takes the cross-process lock, shared for reads
func (s *Storage) lockFile(shared bool) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	var err error
	if shared {
		err = s.fileLock.RLock()
	} else {
		err = s.fileLock.Lock()
	}
	if err != nil {
		return fmt.Errorf("failed to lock journal: %w", err)
	}
	return nil
}

// loadLocked reads entries from the storage file. A missing file is an empty
// journal. Caller holds s.mu and the file lock.
func (s *Storage) loadLocked() error {
	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.entries = make(map[string]*Entry)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}

	var stored fileFormat
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal journal: %w", err)
	}

	s.entries = stored.Entries
	if s.entries == nil {
		s.entries = make(map[string]*Entry)
	}

	return nil
}

// mutate applies fn to the entries as currently on disk and writes the result back
func (s *Storage) mutate(fn func(entries map[string]*Entry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lockFile(false); err != nil {
		return err
	}
	defer s.fileLock.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	if err := fn(s.entries); err != nil {
		return err
	}
	return s.saveLocked()
}

// saveLocked writes entries to the storage file. Caller holds s.mu and the
// exclusive file lock.
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Entries: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Add stores a new entry
func (s *Storage) Add(entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	return s.mutate(func(entries map[string]*Entry) error {
		if _, exists := entries[entry.ID]; exists {
			return fmt.Errorf("entry '%s' already exists", entry.ID)
		}
		entries[entry.ID] = entry
		return nil
	})
}

// Get retrieves an entry by ID
func (s *Storage) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.entries[id]
	if !exists {
		return nil, fmt.Errorf("entry '%s' not found", id)
	}

	return entry, nil
}

// Update replaces an existing entry
func (s *Storage) Update(entry *Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	return s.mutate(func(entries map[string]*Entry) error {
		if _, exists := entries[entry.ID]; !exists {
			return fmt.Errorf("entry '%s' not found", entry.ID)
		}
		entries[entry.ID] = entry
		return nil
	})
}

// List returns all entries, newest first
func (s *Storage) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sortNewestFirst(entries)

	return entries
}

// ListByStatus returns entries filtered by status, newest first
func (s *Storage) ListByStatus(status Status) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*Entry, 0)
	for _, entry := range s.entries {
		if entry.Status == status {
			entries = append(entries, entry)
		}
	}
	sortNewestFirst(entries)

	return entries
}

// Count returns the total number of entries
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// GetFilePath returns the storage file path
func (s *Storage) GetFilePath() string {
	return s.filePath
}

func sortNewestFirst(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Created.After(entries[j].Created)
	})
}
