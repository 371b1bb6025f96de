package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a Store backed by a single JSON file. All keys live in one
// document; every Set rewrites the document through a temp file and an
// atomic rename so a crash never leaves a torn write behind.
type FileStore struct {
	path     string
	mu       sync.Mutex
	values   map[string]json.RawMessage
	watchers map[string][]chan struct{}
	loaded   bool
}

// NewFileStore creates a file store at path. The file is created lazily on
// the first Set; a missing file reads as an empty store.
func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &FileStore{
		path:     path,
		watchers: make(map[string][]chan struct{}),
	}, nil
}

// Get returns the raw value for key
func (fs *FileStore) Get(key string) ([]byte, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.loadLocked(); err != nil {
		return nil, false, err
	}

	value, ok := fs.values[key]
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Set durably writes value under key and notifies watchers
func (fs *FileStore) Set(key string, value []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.loadLocked(); err != nil {
		return err
	}

	fs.values[key] = json.RawMessage(value)

	if err := fs.persistLocked(); err != nil {
		return err
	}

	fs.notifyLocked(key)
	return nil
}

// Watch returns a channel signalled after every committed Set of key
func (fs *FileStore) Watch(key string) <-chan struct{} {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Buffer of one: a pending signal already means "re-read", further
	// writes before the read add nothing.
	ch := make(chan struct{}, 1)
	fs.watchers[key] = append(fs.watchers[key], ch)
	return ch
}

// loadLocked reads the backing file once. Caller holds fs.mu.
func (fs *FileStore) loadLocked() error {
	if fs.loaded {
		return nil
	}

	fs.values = make(map[string]json.RawMessage)

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			fs.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read store file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &fs.values); err != nil {
			return fmt.Errorf("failed to decode store file: %w", err)
		}
	}

	fs.loaded = true
	return nil
}

// persistLocked writes the whole document atomically. Caller holds fs.mu.
func (fs *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(fs.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tempPath := fs.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary store file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write store file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync store file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close store file: %w", err)
	}

	if err := os.Rename(tempPath, fs.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace store file: %w", err)
	}

	return nil
}

// notifyLocked signals all watchers of key without blocking. Caller holds fs.mu.
func (fs *FileStore) notifyLocked(key string) {
	for _, ch := range fs.watchers[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
