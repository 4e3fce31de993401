package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lordseriouspig/nova-shell/internal/domain"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestUniqueName_Sequence(t *testing.T) {
	dir := t.TempDir()

	got, err := UniqueName(dir, "report.pdf")
	if err != nil || got != "report.pdf" {
		t.Fatalf("UniqueName() = %q, %v; want report.pdf", got, err)
	}

	touch(t, dir, "report.pdf")
	got, err = UniqueName(dir, "report.pdf")
	if err != nil || got != "report (1).pdf" {
		t.Fatalf("UniqueName() = %q, %v; want report (1).pdf", got, err)
	}

	touch(t, dir, "report (1).pdf")
	got, err = UniqueName(dir, "report.pdf")
	if err != nil || got != "report (2).pdf" {
		t.Fatalf("UniqueName() = %q, %v; want report (2).pdf", got, err)
	}
}

func TestUniqueName_Shapes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"README", ".bashrc", "archive.tar.gz", "download"} {
		touch(t, dir, name)
	}

	tests := []struct {
		desired string
		want    string
	}{
		{"README", "README (1)"},
		{".bashrc", ".bashrc (1)"},
		{"archive.tar.gz", "archive.tar (1).gz"},
		{"../../etc/README", "README (1)"},
		{`C:\Users\x\new.txt`, "new.txt"},
		{"", "download (1)"},
		{"..", "download (1)"},
		{"dir/", "download (1)"},
	}

	for _, tt := range tests {
		t.Run(tt.desired, func(t *testing.T) {
			got, err := UniqueName(dir, tt.desired)
			if err != nil {
				t.Fatalf("UniqueName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("UniqueName(%q) = %q, want %q", tt.desired, got, tt.want)
			}
		})
	}
}

func TestUniqueName_Exhausted(t *testing.T) {
	_, err := uniqueName("a.txt", func(string) bool { return true })
	if !errors.Is(err, domain.ErrNameSpaceExhausted) {
		t.Errorf("error = %v, want ErrNameSpaceExhausted", err)
	}
}

func TestManager_Allocate(t *testing.T) {
	root := filepath.Join(t.TempDir(), "Downloads")
	m, err := NewManager(root)
	if err != nil {
		t.Fatal(err)
	}

	path, err := m.Allocate("a.zip", nil)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if path != filepath.Join(m.Root(), "a.zip") {
		t.Errorf("Allocate() = %q", path)
	}
	if _, err := os.Stat(m.Root()); err != nil {
		t.Errorf("download dir not created: %v", err)
	}

	// A pending partial file reserves its name
	touch(t, m.Root(), "a.zip"+PartSuffix)
	path, err = m.Allocate("a.zip", nil)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "a (1).zip" {
		t.Errorf("Allocate() = %q, want a (1).zip", filepath.Base(path))
	}
}

func TestManager_AllocateSkipsReserved(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	held := map[string]bool{
		filepath.Join(m.Root(), "a.zip"):     true,
		filepath.Join(m.Root(), "a (1).zip"): true,
	}
	path, err := m.Allocate("a.zip", func(p string) bool { return held[p] })
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if filepath.Base(path) != "a (2).zip" {
		t.Errorf("Allocate() = %q, want a (2).zip", filepath.Base(path))
	}
}

func TestManager_CleanOldPartFiles(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	touch(t, m.Root(), "old.zip.part")
	touch(t, m.Root(), "new.zip.part")
	touch(t, m.Root(), "keep.zip")
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(m.Root(), "old.zip.part"), old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(filepath.Join(m.Root(), "keep.zip"), old, old); err != nil {
		t.Fatal(err)
	}

	n, err := m.CleanOldPartFiles(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanOldPartFiles() error = %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d files, want 1", n)
	}
	for _, name := range []string{"new.zip.part", "keep.zip"} {
		if _, err := os.Stat(filepath.Join(m.Root(), name)); err != nil {
			t.Errorf("%s should remain: %v", name, err)
		}
	}
}

func TestManager_CleanOldPartFiles_MissingDir(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatal(err)
	}
	n, err := m.CleanOldPartFiles(time.Hour)
	if err != nil || n != 0 {
		t.Errorf("CleanOldPartFiles() = %d, %v; want 0, nil", n, err)
	}
}

func TestManager_GetDiskUsage(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "not", "yet"))
	if err != nil {
		t.Fatal(err)
	}
	usage, err := m.GetDiskUsage()
	if err != nil {
		t.Fatalf("GetDiskUsage() error = %v", err)
	}
	if usage.Total == 0 {
		t.Error("Total should be non-zero")
	}
}
