package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/domain/vo"
	"github.com/lordseriouspig/nova-shell/internal/port"
)

// Template tokens substituted into markup resources
const (
	TokenPageName  = "{{PAGE_NAME}}"
	TokenTimestamp = "{{TIMESTAMP}}"
	TokenVersion   = "{{VERSION}}"
)

const pageExtension = ".html"

// SandboxRoots are the directories bundled resources are served from
type SandboxRoots struct {
	Pages  string
	Assets string
}

// ResourceStore loads bundled resources, refusing anything that resolves
// outside its canonical sandbox roots.
type ResourceStore struct {
	pagesRoot  string
	assetsRoot string
	version    string
	logger     *zap.Logger
	now        func() time.Time
}

// Ensure ResourceStore implements port.ResourceLoader
var _ port.ResourceLoader = (*ResourceStore)(nil)

// NewResourceStore creates a store over the given roots. Roots are made
// absolute and symlink-free once, so containment checks compare canonical paths.
func NewResourceStore(roots SandboxRoots, version string, logger *zap.Logger) (*ResourceStore, error) {
	pages, err := canonicalRoot(roots.Pages)
	if err != nil {
		return nil, fmt.Errorf("pages root: %w", err)
	}
	assets, err := canonicalRoot(roots.Assets)
	if err != nil {
		return nil, fmt.Errorf("assets root: %w", err)
	}

	return &ResourceStore{
		pagesRoot:  pages,
		assetsRoot: assets,
		version:    version,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// PagesRoot returns the canonical pages root
func (s *ResourceStore) PagesRoot() string {
	return s.pagesRoot
}

// AssetsRoot returns the canonical assets root
func (s *ResourceStore) AssetsRoot() string {
	return s.assetsRoot
}

// Load resolves path within the root for category and returns its bytes
func (s *ResourceStore) Load(path vo.SanitizedPath, category domain.ResourceCategory, pageName string) (*domain.Resource, error) {
	root, rel := s.locate(path, category)

	full, err := resolveWithin(root, rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, classifyFSError(full, err)
	}
	if info.IsDir() {
		return nil, domain.NewResolveError(domain.ErrResourceMissing, full, errors.New("is a directory"))
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, classifyFSError(full, err)
	}

	mediaType := vo.MediaTypeFor(rel)
	if vo.IsRasterImage(mediaType) {
		s.checkContent(full, mediaType, data)
	}
	if vo.IsMarkup(mediaType) {
		data = s.substitute(data, pageName)
	}

	return &domain.Resource{
		Bytes:        data,
		MediaType:    mediaType,
		ResolvedPath: full,
	}, nil
}

// locate maps a sanitized path to its sandbox root and root-relative file
func (s *ResourceStore) locate(path vo.SanitizedPath, category domain.ResourceCategory) (string, string) {
	if category == domain.CategoryAsset {
		return s.assetsRoot, path.TrimPrefix("assets/")
	}
	if path.Extension() == "" {
		return s.pagesRoot, path.String() + pageExtension
	}
	return s.pagesRoot, path.String()
}

func (s *ResourceStore) substitute(data []byte, pageName string) []byte {
	r := strings.NewReplacer(
		TokenPageName, pageName,
		TokenTimestamp, s.now().UTC().Format(time.RFC3339),
		TokenVersion, s.version,
	)
	return []byte(r.Replace(string(data)))
}

// checkContent warns when an image's bytes disagree with its extension.
// The extension-derived type is still served.
func (s *ResourceStore) checkContent(path, mediaType string, data []byte) {
	detected := mimetype.Detect(data)
	if !detected.Is(mediaType) {
		s.logger.Warn("Asset content does not match extension",
			zap.String("path", path),
			zap.String("expected", mediaType),
			zap.String("detected", detected.String()))
	}
}

// resolveWithin joins rel onto root and requires the result, before and after
// symlink resolution, to stay inside root.
func resolveWithin(root, rel string) (string, error) {
	candidate := filepath.Join(root, filepath.FromSlash(rel))
	if !within(root, candidate) {
		return "", domain.NewResolveError(domain.ErrSandboxEscape, candidate, nil)
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", classifyFSError(candidate, err)
	}
	if !within(root, resolved) {
		return "", domain.NewResolveError(domain.ErrSandboxEscape, resolved, nil)
	}
	return resolved, nil
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

func canonicalRoot(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("root directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create root dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func classifyFSError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return domain.NewResolveError(domain.ErrResourceMissing, path, err)
	}
	return domain.NewResolveError(domain.ErrInternalFault, path, err)
}
