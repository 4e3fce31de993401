package port

import (
	"time"

	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/domain/vo"
)

// ResourceLoader loads bundled resources from the sandboxed roots
type ResourceLoader interface {
	// Load resolves path within the root for category and returns its bytes.
	// pageName is substituted into markup templates.
	// Errors wrap domain.ErrResourceMissing, domain.ErrSandboxEscape or
	// domain.ErrInternalFault.
	Load(path vo.SanitizedPath, category domain.ResourceCategory, pageName string) (*domain.Resource, error)
}

// DownloadDirectory manages the directory transfers are saved into
type DownloadDirectory interface {
	// Root returns the download directory
	Root() string

	// Allocate creates the directory if needed and returns a full path
	// for desiredName that does not collide with an existing file or with
	// a path for which reserved returns true. reserved may be nil.
	Allocate(desiredName string, reserved func(path string) bool) (string, error)

	// CleanOldPartFiles removes partial transfer files older than the specified duration
	// Returns the number of files deleted
	CleanOldPartFiles(olderThan time.Duration) (int, error)
}

// FolderOpener reveals a directory in the platform file manager
type FolderOpener interface {
	OpenFolder(dir string) error
}

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	UsedPct float64 `json:"usedPct"`
}

// DiskUsageReporter reports usage of the volume holding the download directory
type DiskUsageReporter interface {
	GetDiskUsage() (*DiskUsage, error)
}
