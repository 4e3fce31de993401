package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/domain/vo"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestStore(t *testing.T) (*ResourceStore, string) {
	t.Helper()
	base := t.TempDir()
	pages := filepath.Join(base, "pages")
	assets := filepath.Join(base, "assets")

	writeFile(t, filepath.Join(pages, "home.html"), "<h1>{{PAGE_NAME}}</h1><p>{{VERSION}}</p><time>{{TIMESTAMP}}</time>")
	writeFile(t, filepath.Join(pages, "theme.css"), "body{}")
	writeFile(t, filepath.Join(assets, "icon", "icon.png"), "\x89PNG\r\n\x1a\n0000")
	writeFile(t, filepath.Join(assets, "fake.png"), "not really a png")
	writeFile(t, filepath.Join(base, "secret.txt"), "top secret")

	store, err := NewResourceStore(SandboxRoots{Pages: pages, Assets: assets}, "1.2.3", zap.NewNop())
	if err != nil {
		t.Fatalf("NewResourceStore() error = %v", err)
	}
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)) }
	return store, base
}

func TestResourceStore_LoadPage(t *testing.T) {
	store, _ := newTestStore(t)

	res, err := store.Load(vo.MustSanitizePath("home"), domain.CategoryPage, "home")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.MediaType != vo.MediaTypeHTML {
		t.Errorf("MediaType = %q, want %q", res.MediaType, vo.MediaTypeHTML)
	}
	want := "<h1>home</h1><p>1.2.3</p><time>2026-01-02T02:04:05Z</time>"
	if string(res.Bytes) != want {
		t.Errorf("Bytes = %q, want %q", res.Bytes, want)
	}
	if !strings.HasPrefix(res.ResolvedPath, store.PagesRoot()) {
		t.Errorf("ResolvedPath %q outside pages root %q", res.ResolvedPath, store.PagesRoot())
	}
}

func TestResourceStore_LoadThemeAndAsset(t *testing.T) {
	store, _ := newTestStore(t)

	css, err := store.Load(vo.MustSanitizePath("theme.css"), domain.CategoryPage, "theme.css")
	if err != nil {
		t.Fatalf("Load(theme.css) error = %v", err)
	}
	if css.MediaType != vo.MediaTypeCSS || string(css.Bytes) != "body{}" {
		t.Errorf("theme.css = %q %q", css.MediaType, css.Bytes)
	}

	icon, err := store.Load(vo.MustSanitizePath("assets/icon/icon.png"), domain.CategoryAsset, "assets/icon/icon.png")
	if err != nil {
		t.Fatalf("Load(icon) error = %v", err)
	}
	if icon.MediaType != vo.MediaTypePNG {
		t.Errorf("MediaType = %q, want image/png", icon.MediaType)
	}
	if !strings.HasPrefix(icon.ResolvedPath, store.AssetsRoot()) {
		t.Errorf("ResolvedPath %q outside assets root", icon.ResolvedPath)
	}

	// Mismatched content is served under the extension type
	fake, err := store.Load(vo.MustSanitizePath("assets/fake.png"), domain.CategoryAsset, "assets/fake.png")
	if err != nil {
		t.Fatalf("Load(fake.png) error = %v", err)
	}
	if fake.MediaType != vo.MediaTypePNG {
		t.Errorf("MediaType = %q, want image/png", fake.MediaType)
	}
}

func TestResourceStore_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		path     string
		category domain.ResourceCategory
	}{
		{"settings", domain.CategoryPage},
		{"assets/nope.png", domain.CategoryAsset},
		{"assets/icon", domain.CategoryAsset},
		{"assets/", domain.CategoryAsset},
		{"assets/icon/icon.png/x", domain.CategoryAsset},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := store.Load(vo.MustSanitizePath(tt.path), tt.category, tt.path)
			if !errors.Is(err, domain.ErrResourceMissing) {
				t.Errorf("Load(%q) error = %v, want ErrResourceMissing", tt.path, err)
			}
		})
	}
}

func TestResourceStore_SymlinkEscape(t *testing.T) {
	store, base := newTestStore(t)

	link := filepath.Join(store.AssetsRoot(), "leak.txt")
	if err := os.Symlink(filepath.Join(base, "secret.txt"), link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	_, err := store.Load(vo.MustSanitizePath("assets/leak.txt"), domain.CategoryAsset, "assets/leak.txt")
	if !errors.Is(err, domain.ErrSandboxEscape) {
		t.Fatalf("Load() error = %v, want ErrSandboxEscape", err)
	}
	if !domain.IsSecurityRelevant(err) {
		t.Error("sandbox escape must be security relevant")
	}
}

func TestResourceStore_SymlinkInsideRoot(t *testing.T) {
	store, _ := newTestStore(t)

	link := filepath.Join(store.AssetsRoot(), "alias.png")
	if err := os.Symlink(filepath.Join(store.AssetsRoot(), "icon", "icon.png"), link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if _, err := store.Load(vo.MustSanitizePath("assets/alias.png"), domain.CategoryAsset, "assets/alias.png"); err != nil {
		t.Errorf("Load() error = %v, want nil", err)
	}
}

// Relative paths that never came through the sanitizer must still be
// contained by the prefix check.
func TestResolveWithin_Injection(t *testing.T) {
	root := t.TempDir()
	root, _ = filepath.EvalSymlinks(root)
	sibling := root + "-sibling"

	tests := []struct {
		rel  string
		want error
	}{
		{"../../etc/passwd", domain.ErrSandboxEscape},
		{"..", domain.ErrSandboxEscape},
		{"a/../../" + filepath.Base(sibling) + "/x", domain.ErrSandboxEscape},
		{"/etc/passwd", domain.ErrResourceMissing},
		{"nope", domain.ErrResourceMissing},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			_, err := resolveWithin(root, tt.rel)
			if !errors.Is(err, tt.want) {
				t.Errorf("resolveWithin(%q) error = %v, want %v", tt.rel, err, tt.want)
			}
		})
	}
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + "srv" + sep + "pages"

	if !within(root, root) {
		t.Error("root should contain itself")
	}
	if !within(root, root+sep+"home.html") {
		t.Error("child should be contained")
	}
	if within(root, root+"-evil"+sep+"home.html") {
		t.Error("sibling with shared prefix must not be contained")
	}
	if within(root, sep+"srv") {
		t.Error("parent must not be contained")
	}
}

func TestNewResourceStore_RequiresRoots(t *testing.T) {
	if _, err := NewResourceStore(SandboxRoots{Pages: "", Assets: t.TempDir()}, "v", zap.NewNop()); err == nil {
		t.Error("expected error for empty pages root")
	}
}
