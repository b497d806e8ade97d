package canvas

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator allocates instance and connection ids.
// Implemented by UUIDv7Generator, SequenceGenerator and FixedGenerator.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids in order.
//
// Panics when exhausted: a test that allocates more ids than it listed is
// misconfigured.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
//	gen := NewFixedGenerator("u1", "u2")
//	gen.Generate() // "u1"
//	gen.Generate() // "u2"
//	gen.Generate() // panic
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// SequenceGenerator yields "<prefix>1", "<prefix>2", ... and never runs
// out. Used where ids are typed by hand: the shell and scenario files.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator for the given prefix.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return g.prefix + strconv.Itoa(g.n)
}

// Skip moves the sequence past id if id is one of its own, so ids restored
// from a saved design are not handed out again.
func (g *SequenceGenerator) Skip(id string) {
	rest, ok := strings.CutPrefix(id, g.prefix)
	if !ok {
		return
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = max(g.n, n)
}
