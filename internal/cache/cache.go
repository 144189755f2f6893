// Package cache holds resolved secrets in memory for a bounded time.
//
// Expiry is lazy: an entry is checked against the wall clock when it is read
// and evicted on the spot if it is too old. There is no background sweeper and
// no size bound; entries leave only through expiry, Delete or Clear.
//
// A fetch that started before a Delete or Clear must not repopulate the cache
// with what it read. Writers take a Generation before fetching and store
// through SetIfGeneration, which refuses once the key has been invalidated.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/systmms/secretchain/internal/secure"
)

// Key addresses one secret in one folder. An empty Path means the root folder.
type Key struct {
	Name string
	Path string
}

// String renders the key for display: the bare name at the root, otherwise
// "<path>:<name>"
func (k Key) String() string {
	if k.Path == "" || k.Path == "/" {
		return k.Name
	}
	return k.Path + ":" + k.Name
}

// Generation identifies the invalidation state of one key at a point in time
type Generation struct {
	epoch uint64
	key   uint64
}

// Entry is a cached secret as seen by callers
type Entry struct {
	Value     string
	Source    string
	FetchedAt time.Time
	TTL       time.Duration
}

// Valid reports whether the entry is still fresh at now
func (e Entry) Valid(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

type item struct {
	sealed    *secure.SealedString
	source    string
	fetchedAt time.Time
	ttl       time.Duration
}

// Stats is a snapshot of the cache contents
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`

	// Entries holds the same keys as Keys, unrendered
	Entries []Key `json:"-"`
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache is safe for concurrent use. Concurrent Sets on one key are last-write-wins.
type Cache struct {
	mu      sync.Mutex
	items   map[Key]*item
	epoch   uint64
	gens    map[Key]uint64
	enabled bool
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache. When enabled is false every Set is a no-op.
func New(enabled bool, defaultTTL time.Duration, opts ...Option) *Cache {
	c := &Cache{
		items:   make(map[Key]*item),
		gens:    make(map[Key]uint64),
		enabled: enabled,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether Set stores anything
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Get returns the entry for key. An expired entry is evicted and reported as a miss.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	it, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return Entry{}, false
	}

	now := c.now()
	if now.Sub(it.fetchedAt) >= it.ttl {
		delete(c.items, key)
		c.mu.Unlock()
		it.sealed.Destroy()
		return Entry{}, false
	}
	c.mu.Unlock()

	value, err := it.sealed.Reveal()
	if err != nil {
		// a concurrent Delete/Clear destroyed it between unlock and reveal
		return Entry{}, false
	}

	return Entry{
		Value:     value,
		Source:    it.source,
		FetchedAt: it.fetchedAt,
		TTL:       it.ttl,
	}, true
}

// Set stores value under key unconditionally. A ttl <= 0 uses the cache default.
func (c *Cache) Set(key Key, value, source string, ttl time.Duration) {
	c.store(key, value, source, ttl, nil)
}

// Generation returns the current invalidation state of key
func (c *Cache) Generation(key Key) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Generation{epoch: c.epoch, key: c.gens[key]}
}

// SetIfGeneration stores value only if key has not been deleted or cleared
// since gen was taken. It reports whether the value was stored.
func (c *Cache) SetIfGeneration(key Key, gen Generation, value, source string, ttl time.Duration) bool {
	return c.store(key, value, source, ttl, &gen)
}

func (c *Cache) store(key Key, value, source string, ttl time.Duration, gen *Generation) bool {
	if !c.enabled {
		return false
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	it := &item{
		sealed:    secure.Seal(value),
		source:    source,
		fetchedAt: c.now(),
		ttl:       ttl,
	}

	c.mu.Lock()
	if gen != nil && (gen.epoch != c.epoch || gen.key != c.gens[key]) {
		c.mu.Unlock()
		it.sealed.Destroy()
		return false
	}
	old := c.items[key]
	c.items[key] = it
	c.mu.Unlock()

	if old != nil {
		old.sealed.Destroy()
	}
	return true
}

// Delete removes key, reporting whether it was present. Writes guarded by an
// older Generation of key are refused afterwards.
func (c *Cache) Delete(key Key) bool {
	c.mu.Lock()
	it, ok := c.items[key]
	delete(c.items, key)
	c.gens[key]++
	c.mu.Unlock()

	if ok {
		it.sealed.Destroy()
	}
	return ok
}

// Clear removes every entry and invalidates every outstanding Generation
func (c *Cache) Clear() {
	c.mu.Lock()
	old := c.items
	c.items = make(map[Key]*item)
	c.gens = make(map[Key]uint64)
	c.epoch++
	c.mu.Unlock()

	for _, it := range old {
		it.sealed.Destroy()
	}
}

// Stats returns the current size and sorted keys. Expired entries that have
// not been read yet are still counted.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Key, 0, len(c.items))
	for k := range c.items {
		entries = append(entries, k)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].String() < entries[j].String()
	})

	keys := make([]string, len(entries))
	for i, k := range entries {
		keys[i] = k.String()
	}
	return Stats{Size: len(entries), Keys: keys, Entries: entries}
}
