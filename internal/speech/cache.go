package speech

import (
	"strings"
	"sync"
	"time"
)

const resultTTL = time.Hour

// resultCache holds recent synthesis results so repeated lines (quick
// starter answers, greetings) are not resynthesized. Bounded; evicts the
// oldest entry at capacity. Entries are immutable once written.
type resultCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    []string
	capacity int
	now      func() time.Time
}

type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

func newResultCache(capacity int) *resultCache {
	if capacity <= 0 {
		capacity = 200
	}
	return &resultCache{
		entries:  make(map[string]*cacheEntry),
		capacity: capacity,
		now:      time.Now,
	}
}

func resultKey(text, voice string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	return voice + "|" + normalized
}

func (c *resultCache) get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

func (c *resultCache) set(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.capacity && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{
		result:    result,
		expiresAt: c.now().Add(resultTTL),
	}
}
