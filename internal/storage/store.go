// internal/storage/store.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store persists JSON documents under a base directory. Writes are atomic
// (temp file + rename) and serialized per path; reads go through a small
// time-bounded cache.
type Store struct {
	BaseDir string

	fileLocks sync.Map // path -> *sync.RWMutex

	cache        map[string]*cacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int
}

type cacheEntry struct {
	data      []byte
	timestamp time.Time
}

// NewStore creates a store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &Store{
		BaseDir:      baseDir,
		cache:        make(map[string]*cacheEntry),
		cacheExpiry:  5 * time.Minute,
		maxCacheSize: 100,
	}, nil
}

func (s *Store) lockFor(fullPath string) *sync.RWMutex {
	value, _ := s.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// SaveJSON marshals v and writes it atomically to dirPath/filename.
func (s *Store) SaveJSON(dirPath, filename string, v interface{}) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.saveFile(dirPath, filename, content)
}

func (s *Store) saveFile(dirPath, filename string, content []byte) error {
	fullDirPath := filepath.Join(s.BaseDir, dirPath)
	fullPath := filepath.Join(fullDirPath, filename)

	lock := s.lockFor(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replacing file: %w", err)
	}

	s.invalidate(fullPath)
	return nil
}

// LoadJSON reads dirPath/filename and unmarshals it into v.
func (s *Store) LoadJSON(dirPath, filename string, v interface{}) error {
	content, err := s.loadFile(dirPath, filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	return nil
}

func (s *Store) loadFile(dirPath, filename string) ([]byte, error) {
	fullPath := filepath.Join(s.BaseDir, dirPath, filename)

	if data, ok := s.cached(fullPath); ok {
		return data, nil
	}

	lock := s.lockFor(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, err
	}

	s.remember(fullPath, content)
	return content, nil
}

// FileExists reports whether dirPath/filename exists.
func (s *Store) FileExists(dirPath, filename string) bool {
	_, err := os.Stat(filepath.Join(s.BaseDir, dirPath, filename))
	return err == nil
}

// DeleteFile removes dirPath/filename.
func (s *Store) DeleteFile(dirPath, filename string) error {
	fullPath := filepath.Join(s.BaseDir, dirPath, filename)

	lock := s.lockFor(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", fullPath)
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("removing file: %w", err)
	}

	s.invalidate(fullPath)
	return nil
}

// DeleteDir removes a directory tree and its cached entries.
func (s *Store) DeleteDir(dirPath string) error {
	fullPath := filepath.Join(s.BaseDir, dirPath)

	lock := s.lockFor(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", fullPath)
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("removing directory: %w", err)
	}

	s.cacheMutex.Lock()
	for key := range s.cache {
		if strings.HasPrefix(key, fullPath) {
			delete(s.cache, key)
		}
	}
	s.cacheMutex.Unlock()

	return nil
}

// ListDirs returns the names of subdirectories under dirPath.
func (s *Store) ListDirs(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.BaseDir, dirPath))
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}

	return dirs, nil
}

func (s *Store) cached(path string) ([]byte, bool) {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()

	entry, exists := s.cache[path]
	if !exists || time.Since(entry.timestamp) >= s.cacheExpiry {
		return nil, false
	}
	return entry.data, true
}

func (s *Store) remember(path string, data []byte) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.cache[path] = &cacheEntry{data: data, timestamp: time.Now()}

	if len(s.cache) > s.maxCacheSize {
		var oldestKey string
		var oldestTime time.Time
		for key, entry := range s.cache {
			if oldestKey == "" || entry.timestamp.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.timestamp
			}
		}
		if oldestKey != "" {
			delete(s.cache, oldestKey)
		}
	}
}

func (s *Store) invalidate(path string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	delete(s.cache, path)
}
