// Package id generates download identifiers.
//
// Identifiers are prefixed ULIDs: a millisecond timestamp plus random entropy,
// so they sort by creation time and stay unique within the process even when
// several transfers start in the same millisecond.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DownloadPrefix marks download record identifiers
const DownloadPrefix = "dl"

// Generator generates monotonic ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // ulid.MonotonicEntropy is not safe for concurrent use
	now       func() time.Time
}

// NewGenerator creates a new generator backed by crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
		now:     time.Now,
	}
}

// Generate creates a new ULID. Within one millisecond successive values
// are strictly increasing.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + "_" + g.Generate().String()
}

// NewDownloadID creates a download record identifier
func (g *Generator) NewDownloadID() string {
	return g.GenerateWithPrefix(DownloadPrefix)
}
