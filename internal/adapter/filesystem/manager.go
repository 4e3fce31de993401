package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lordseriouspig/nova-shell/internal/port"
)

// PartSuffix marks files a transfer is still writing
const PartSuffix = ".part"

// Manager handles the download directory
type Manager struct {
	rootDir string
}

// Ensure Manager implements port.DownloadDirectory
var _ port.DownloadDirectory = (*Manager)(nil)

// NewManager creates a new download directory manager.
// The directory is created lazily on the first Allocate.
func NewManager(rootDir string) (*Manager, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("download directory is required")
	}
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download directory: %w", err)
	}
	return &Manager{rootDir: abs}, nil
}

// Root returns the download directory
func (m *Manager) Root() string {
	return m.rootDir
}

// EnsureDir ensures the download directory exists
func (m *Manager) EnsureDir() error {
	return os.MkdirAll(m.rootDir, 0755)
}

// Allocate returns a collision-free path for desiredName in the download directory.
// A name whose partial file exists, or whose path is reserved, counts as taken.
func (m *Manager) Allocate(desiredName string, reserved func(path string) bool) (string, error) {
	if err := m.EnsureDir(); err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}

	name, err := uniqueName(desiredName, func(name string) bool {
		full := filepath.Join(m.rootDir, name)
		if reserved != nil && reserved(full) {
			return true
		}
		return exists(full) || exists(PartPath(full))
	})
	if err != nil {
		return "", err
	}
	return filepath.Join(m.rootDir, name), nil
}

// PartPath returns the in-progress path for a destination
func PartPath(dest string) string {
	return dest + PartSuffix
}

// CleanOldPartFiles removes partial files older than the specified duration.
// Only the top level of the download directory is scanned.
func (m *Manager) CleanOldPartFiles(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	count := 0
	threshold := time.Now().Add(-olderThan)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), PartSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(filepath.Join(m.rootDir, entry.Name())); removeErr == nil {
				count++
			}
		}
	}
	return count, nil
}
