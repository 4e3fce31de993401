package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lordseriouspig/nova-shell/internal/domain"
)

// MaxNameAttempts caps the " (n)" suffix search
const MaxNameAttempts = 10000

// DefaultFilename replaces desired names that reduce to nothing usable
const DefaultFilename = "download"

// UniqueName returns a file name in dir that does not collide with an existing
// entry at call time. A taken name becomes "stem (1)ext", "stem (2)ext", ...
// Another writer may still claim the name before the caller creates it.
func UniqueName(dir, desired string) (string, error) {
	return uniqueName(desired, func(name string) bool {
		return exists(filepath.Join(dir, name))
	})
}

func uniqueName(desired string, taken func(string) bool) (string, error) {
	name := BaseName(desired)
	if !taken(name) {
		return name, nil
	}

	stem, ext := splitName(name)
	for n := 1; n <= MaxNameAttempts; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if !taken(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrNameSpaceExhausted, name)
}

// BaseName reduces a suggested name to a single path element
func BaseName(desired string) string {
	name := strings.ReplaceAll(desired, `\`, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return DefaultFilename
	}
	return name
}

// splitName splits at the last dot; a leading dot is part of the stem
func splitName(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
