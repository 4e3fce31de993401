package vo

import (
	"errors"
	"strings"
)

// ParentRef is the two-character parent directory reference
const ParentRef = ".."

// ErrEmptyPath is returned when nothing survives sanitization
var ErrEmptyPath = errors.New("sanitized path is empty")

// SanitizedPath is a normalized relative locator path.
// It never contains "..", backslashes, duplicate slashes, or characters
// outside [A-Za-z0-9-_./].
type SanitizedPath struct {
	value string
}

// PathTransform is one pure sanitization pass
type PathTransform func(string) string

// sanitizePasses is applied in order. The order matters: separators are
// normalized before slashes are collapsed, and disallowed characters are
// dropped last.
var sanitizePasses = []PathTransform{
	StripParentRefs,
	NormalizeSeparators,
	CollapseSlashes,
	DropDisallowed,
}

// SanitizePath runs the pass pipeline until its output is stable.
// A later pass can recreate a token an earlier pass removed (".%." loses the
// '%' and becomes ".."), so a single run is not enough. After the first run
// no backslashes remain and every further change shortens the string, so the
// loop is bounded by the input length.
func SanitizePath(raw string) (SanitizedPath, error) {
	current := raw
	for {
		next := current
		for _, pass := range sanitizePasses {
			next = pass(next)
		}
		if next == current {
			break
		}
		current = next
	}

	if current == "" {
		return SanitizedPath{}, ErrEmptyPath
	}
	return SanitizedPath{value: current}, nil
}

// MustSanitizePath sanitizes a path known to be non-empty, panicking otherwise.
// Use only for compile-time constants.
func MustSanitizePath(raw string) SanitizedPath {
	p, err := SanitizePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// StripParentRefs removes ".." as a literal substring until none remain.
// "...." collapses to "" rather than "..".
func StripParentRefs(s string) string {
	for strings.Contains(s, ParentRef) {
		s = strings.ReplaceAll(s, ParentRef, "")
	}
	return s
}

// NormalizeSeparators converts backslashes to forward slashes
func NormalizeSeparators(s string) string {
	return strings.ReplaceAll(s, `\`, "/")
}

// CollapseSlashes replaces every run of slashes with a single slash
func CollapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// DropDisallowed removes every character outside [A-Za-z0-9-_./]
func DropDisallowed(s string) string {
	return strings.Map(func(r rune) rune {
		if isAllowedRune(r) {
			return r
		}
		return -1
	}, s)
}

func isAllowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.', r == '/':
		return true
	}
	return false
}

// String returns the sanitized path
func (p SanitizedPath) String() string {
	return p.value
}

// IsEmpty returns true for the zero value
func (p SanitizedPath) IsEmpty() bool {
	return p.value == ""
}

// HasPrefix checks if the path starts with the given prefix
func (p SanitizedPath) HasPrefix(prefix string) bool {
	return strings.HasPrefix(p.value, prefix)
}

// TrimPrefix returns the path with prefix removed
func (p SanitizedPath) TrimPrefix(prefix string) string {
	return strings.TrimPrefix(p.value, prefix)
}

// Extension returns the extension of the last path element, including the dot
func (p SanitizedPath) Extension() string {
	base := p.value
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[i:]
	}
	return ""
}

// Equals checks if two paths are equal
func (p SanitizedPath) Equals(other SanitizedPath) bool {
	return p.value == other.value
}
