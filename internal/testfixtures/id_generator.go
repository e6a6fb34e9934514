package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator hands out predictable identifiers. Each prefix keeps its own
// sequence so rooms and allocations created by one test read "room-1",
// "alloc-1" rather than sharing a counter.
type IDGenerator struct {
	mu       sync.Mutex
	prefix   string
	counters map[string]uint64
}

// NewIDGenerator uses prefix for Next; an empty prefix becomes "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix, counters: make(map[string]uint64)}
}

// Next returns the next identifier under the default prefix.
func (g *IDGenerator) Next() string {
	return g.NextFor(g.prefix)
}

// NextFor returns the next identifier under prefix.
func (g *IDGenerator) NextFor(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s-%d", prefix, g.counters[prefix])
}

// NextFunc adapts Next to the func() string the services take.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts every sequence.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counters = make(map[string]uint64)
	g.mu.Unlock()
}
