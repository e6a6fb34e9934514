package application

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// windowCache keeps recent allocation listings keyed by window and room so
// that repeated refreshes of the same timeline skip the database. Any write
// purges it.
type windowCache struct {
	entries *expirable.LRU[string, []Allocation]
}

func newWindowCache(ttl time.Duration, maxEntries int) *windowCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	return &windowCache{entries: expirable.NewLRU[string, []Allocation](maxEntries, nil, ttl)}
}

func (c *windowCache) Get(key string) ([]Allocation, bool) {
	if c == nil {
		return nil, false
	}
	cached, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return cloneAllocations(cached), true
}

func (c *windowCache) Store(key string, allocations []Allocation) {
	if c == nil {
		return
	}
	c.entries.Add(key, cloneAllocations(allocations))
}

func (c *windowCache) Invalidate() {
	if c == nil {
		return
	}
	c.entries.Purge()
}

func (c *windowCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func cloneAllocations(allocations []Allocation) []Allocation {
	if allocations == nil {
		return nil
	}
	out := make([]Allocation, len(allocations))
	for i, allocation := range allocations {
		allocation.RoomIDs = append([]string(nil), allocation.RoomIDs...)
		out[i] = allocation
	}
	return out
}

func buildWindowCacheKey(params ListAllocationsParams) string {
	var b strings.Builder
	if !params.From.IsZero() {
		b.WriteString(params.From.UTC().Format(time.RFC3339Nano))
	}
	b.WriteString("|")
	if !params.To.IsZero() {
		b.WriteString(params.To.UTC().Format(time.RFC3339Nano))
	}
	b.WriteString("|")
	b.WriteString(params.RoomID)
	return b.String()
}
