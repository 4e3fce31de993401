package filesystem

import (
	"os"
	"path/filepath"

	"github.com/lordseriouspig/nova-shell/internal/port"
)

// Ensure Manager reports disk usage
var _ port.DiskUsageReporter = (*Manager)(nil)

func newDiskUsage(total, free uint64) *port.DiskUsage {
	u := &port.DiskUsage{Total: total, Free: free}
	if free < total {
		u.Used = total - free
	}
	if total > 0 {
		u.UsedPct = float64(u.Used) / float64(total) * 100
	}
	return u
}

// existingDir returns the nearest existing ancestor of the download directory,
// which may not have been created yet.
func (m *Manager) existingDir() string {
	dir := m.rootDir
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
