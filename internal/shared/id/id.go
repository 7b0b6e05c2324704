// Package id provides ULID generation for run and capture identifiers.
//
// IDs are lexicographically sortable, so log lines from one pipeline run
// or one extraction call group together when sorted. Prefixes make the
// kind of ID readable in logs (run_*, ext_*, tr_*, sp_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunID identifies one understanding pipeline run
type RunID string

// ExtractionID identifies one extraction call
type ExtractionID string

const (
	RunPrefix        = "run"
	ExtractionPrefix = "ext"
	TracePrefix      = "tr"
	SpanPrefix       = "sp"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRunID generates a new pipeline run ID
func NewRunID() RunID {
	return RunID(Default().GenerateWithPrefix(RunPrefix))
}

// NewExtractionID generates a new extraction call ID
func NewExtractionID() ExtractionID {
	return ExtractionID(Default().GenerateWithPrefix(ExtractionPrefix))
}

func (id RunID) String() string        { return string(id) }
func (id ExtractionID) String() string { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
