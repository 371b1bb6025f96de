package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Manager handles the file landing area for completed downloads
type Manager struct {
	outputDir string
	mu        sync.Mutex
}

// NewManager creates a new storage manager rooted at outputDir
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{outputDir: outputDir}, nil
}

// Save writes the image to filename under the output directory. Data lands
// in a temp file first and is renamed into place, so a crash mid-write
// never leaves a truncated image behind. With overwrite false an existing
// file is an error; with overwrite true the rename replaces it.
func (m *Manager) Save(r io.Reader, filename string, overwrite bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := filepath.Join(m.outputDir, filename)

	if !overwrite {
		if _, err := os.Stat(target); err == nil {
			return "", fmt.Errorf("file already exists: %s", filename)
		}
	}

	tempFile := target + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save image data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return target, nil
}

// Exists checks whether filename is present in the output directory
func (m *Manager) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(m.outputDir, filename))
	return err == nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}
