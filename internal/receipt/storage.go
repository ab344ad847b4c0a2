package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

// Archive stores the original receipt images so a ledger entry can be
// checked against its source photo later.
type Archive interface {
	// Save stores an image and returns its filename.
	Save(filename string, data []byte) (string, error)

	// Get retrieves an archived image.
	Get(filename string) ([]byte, error)

	// Delete removes an archived image.
	Delete(filename string) error
}

// LocalArchive implements Archive on the local filesystem.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates the archive directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Save writes an image under the archive directory.
func (l *LocalArchive) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return filename, nil
}

// Get reads an archived image.
func (l *LocalArchive) Get(filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, filename))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// Delete removes an archived image.
func (l *LocalArchive) Delete(filename string) error {
	if err := os.Remove(filepath.Join(l.basePath, filename)); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}
