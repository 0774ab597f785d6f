package testutil

import (
	"fmt"
	"sync"
)

// ListGenerator returns the given ids in order, then "<fallback>-N".
//
// Repeating an id in the list simulates a colliding generator.
//
// Thread-safety: safe for concurrent use.
type ListGenerator struct {
	mu       sync.Mutex
	ids      []string
	fallback string
	n        int
}

// NewListGenerator creates a generator over ids. Once they run out it
// counts "gen-1", "gen-2", ...
func NewListGenerator(ids ...string) *ListGenerator {
	return &ListGenerator{ids: ids, fallback: "gen"}
}

// Generate returns the next id.
func (g *ListGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.ids) > 0 {
		id := g.ids[0]
		g.ids = g.ids[1:]
		return id
	}
	g.n++
	return fmt.Sprintf("%s-%d", g.fallback, g.n)
}
