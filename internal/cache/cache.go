package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL key/value store with lazy expiry: entries are checked and
// evicted on read, there is no background sweep. Safe for concurrent use;
// the same instance is shared across cooking sessions.
//
// Separate instances are used for vision results, embeddings, and guidance
// because each has a different staleness tolerance.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates a cache whose Set calls default to the given TTL when no
// explicit TTL is passed.
func New[V any](defaultTTL time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Set stores value under key. If ttl is zero, the cache's default TTL applies.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Get returns the value for key if present and not expired. An expired
// entry is evicted on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Has reports whether key holds a live entry.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Size returns the number of stored entries, including any that have
// expired but have not yet been evicted by a read.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// FrameKey builds a cheap fingerprint key for an image frame from its
// length and a prefix of its bytes. Collisions are tolerable because frame
// entries expire quickly.
func FrameKey(frame []byte) string {
	prefix := frame
	if len(prefix) > 64 {
		prefix = prefix[:64]
	}
	var sb strings.Builder
	sb.WriteString("frame:")
	sb.WriteString(strconv.Itoa(len(frame)))
	sb.WriteString(":")
	for _, b := range prefix {
		sb.WriteString(strconv.FormatUint(uint64(b), 16))
	}
	return sb.String()
}
