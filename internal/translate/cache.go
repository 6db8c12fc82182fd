package translate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// cacheKeySampleLen bounds how much text feeds the cache key hash. Long
// inputs with an identical head are assumed identical for caching purposes.
const cacheKeySampleLen = 200

type cacheEntry struct {
	text      string
	createdAt time.Time
}

// CacheStats is a point-in-time snapshot for diagnostics.
type CacheStats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
}

// Cache memoizes translations keyed by language pair, translation context and
// a hash of the input text. Entries expire after a TTL and the oldest entry
// is evicted once the cache is full.
type Cache struct {
	ttl     time.Duration
	maxSize int

	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

func NewCache(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]cacheEntry),
	}
}

// CacheKey derives the lookup key for one translation request.
func CacheKey(text, sourceLang, targetLang, context string) string {
	runes := []rune(text)
	if len(runes) > cacheKeySampleLen {
		runes = runes[:cacheKeySampleLen]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return fmt.Sprintf("%s:%s:%s:%s", sourceLang, targetLang, context, hex.EncodeToString(sum[:]))
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	if time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return "", false
	}
	c.hits++
	return entry.text, true
}

func (c *Cache) Put(key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{text: text, createdAt: time.Now()}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}
