package pricing

import (
	"sync"
	"time"
)

// CacheTTL is how long a live price stays valid
const CacheTTL = time.Hour

// CacheEntry is a previously fetched live price
type CacheEntry struct {
	Amount    float64
	Source    string
	ExpiresAt time.Time
}

// Cache holds live prices keyed by Descriptor.Key. Entries expire lazily on read and are never
// evicted; the key space is bounded by providers x variants x configured regions.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		now:     time.Now,
	}
}

// Get returns the entry for key if it was set and now is strictly before its expiry
func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.ExpiresAt) {
		return CacheEntry{}, false
	}
	return entry, true
}

// Put stores amount under key until now+ttl, replacing any previous entry
func (c *Cache) Put(key string, amount float64, source string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = CacheEntry{
		Amount:    amount,
		Source:    source,
		ExpiresAt: c.now().Add(ttl),
	}
}

// Len reports the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
