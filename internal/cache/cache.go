// Package cache provides the in-memory TTL cache that fronts section
// orchestration. Entries are partitioned by the TTL in force when they were
// written; each partition is a capacity-bounded LRU whose entries expire
// lazily on read.
package cache

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultMaxEntries bounds each partition when no capacity is configured.
const DefaultMaxEntries = 1000

type entry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// Cache is a key/value store with independent expiry per entry.
// All operations share one lock; concurrent writers of the same key resolve
// last-write-wins.
type Cache[V any] struct {
	mu         sync.Mutex
	partitions map[time.Duration]*lru.Cache[string, entry[V]]
	maxEntries int
	now        func() time.Time
	log        zerolog.Logger
}

// New creates a cache whose partitions each hold at most maxEntries keys.
func New[V any](maxEntries int, log zerolog.Logger) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache[V]{
		partitions: make(map[time.Duration]*lru.Cache[string, entry[V]]),
		maxEntries: maxEntries,
		now:        time.Now,
		log:        log.With().Str("component", "cache").Logger(),
	}
}

// SetClock replaces the time source. Used by tests to simulate expiry.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// partition returns the partition for ttl, creating it when create is set.
// Must be called with lock held.
func (c *Cache[V]) partition(ttl time.Duration, create bool) *lru.Cache[string, entry[V]] {
	p, ok := c.partitions[ttl]
	if ok || !create {
		return p
	}

	p, err := lru.New[string, entry[V]](c.maxEntries)
	if err != nil {
		// Only reachable with a non-positive size, which New rules out.
		panic(err)
	}
	c.partitions[ttl] = p
	return p
}

// Get returns the value stored under key in the ttl partition.
// Absent is returned if the key was never written there or has expired.
func (c *Cache[V]) Get(key string, ttl time.Duration) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.partition(ttl, false)
	if p == nil {
		return zero, false
	}

	e, ok := p.Get(key)
	if !ok {
		return zero, false
	}

	if !c.now().Before(e.expiresAt) {
		p.Remove(key)
		return zero, false
	}

	return e.value, true
}

// Set stores value under key in the ttl partition, replacing any existing
// entry and resetting its expiry. The least recently used entry of the
// partition is evicted when it is full.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := c.partition(ttl, true).Add(key, entry[V]{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	})
	if evicted {
		c.log.Debug().Dur("ttl", ttl).Msg("Partition full, evicted least recently used entry")
	}
}

// KeyInfo describes one live cache entry.
type KeyInfo struct {
	Key       string    `json:"key"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PartitionStats describes one TTL partition.
type PartitionStats struct {
	TTLSeconds float64   `json:"ttl_seconds"`
	Entries    int       `json:"entries"`
	Keys       []KeyInfo `json:"keys"`
}

// Stats is a point-in-time view of cache occupancy.
type Stats struct {
	TotalEntries int              `json:"total_entries"`
	Partitions   []PartitionStats `json:"partitions"`
}

// Stats copies key metadata for observability. Expired entries that have not
// been read yet are left in place but not reported.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	stats := Stats{Partitions: make([]PartitionStats, 0, len(c.partitions))}

	for ttl, p := range c.partitions {
		ps := PartitionStats{TTLSeconds: ttl.Seconds(), Keys: make([]KeyInfo, 0, p.Len())}
		for _, key := range p.Keys() {
			e, ok := p.Peek(key)
			if !ok || !now.Before(e.expiresAt) {
				continue
			}
			ps.Keys = append(ps.Keys, KeyInfo{Key: key, CachedAt: e.storedAt, ExpiresAt: e.expiresAt})
		}
		ps.Entries = len(ps.Keys)
		stats.TotalEntries += ps.Entries
		stats.Partitions = append(stats.Partitions, ps)
	}

	sort.Slice(stats.Partitions, func(i, j int) bool {
		return stats.Partitions[i].TTLSeconds < stats.Partitions[j].TTLSeconds
	})

	return stats
}
