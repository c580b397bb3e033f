// cache.go
package namecache

import (
	"sync"

	"github.com/rs/zerolog"
)

// Cache maps identifiers to their resolved display names for the lifetime of
// the process. Entries are never evicted; a Failed entry stays until Clear.
type Cache struct {
	entries   map[string]Entry
	mutex     sync.RWMutex
	version   uint64
	listeners map[int]Listener
	nextID    int
	log       zerolog.Logger
}

func New(log zerolog.Logger) *Cache {
	return &Cache{
		entries:   make(map[string]Entry),
		listeners: make(map[int]Listener),
		log:       log.With().Str("component", "name_cache").Logger(),
	}
}

// Get returns the entry for id, if any
func (c *Cache) Get(id string) (Entry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.entries[id]
	return entry, ok
}

// Put unconditionally stores entry under id
func (c *Cache) Put(id string, entry Entry) {
	c.mutex.Lock()
	c.entries[id] = entry
	c.version++
	c.mutex.Unlock()

	c.notify(id, entry)
}

// Reserve creates a Pending entry for id unless an entry already exists.
// It reports whether the caller now owns the lookup for id.
func (c *Cache) Reserve(id string) bool {
	c.mutex.Lock()
	if _, exists := c.entries[id]; exists {
		c.mutex.Unlock()
		return false
	}
	c.entries[id] = PendingEntry()
	c.version++
	c.mutex.Unlock()

	c.log.Debug().Str("id", id).Msg("Reserved pending entry")
	c.notify(id, PendingEntry())
	return true
}

// Complete stores the outcome of a lookup. It only applies while the entry
// is still Pending, so a late result never overwrites a newer state.
func (c *Cache) Complete(id string, entry Entry) bool {
	c.mutex.Lock()
	current, exists := c.entries[id]
	if !exists || current.State != Pending {
		c.mutex.Unlock()
		c.log.Debug().
			Str("id", id).
			Str("entry", entry.String()).
			Msg("Dropped lookup result for entry that is no longer pending")
		return false
	}
	c.entries[id] = entry
	c.version++
	c.mutex.Unlock()

	c.log.Debug().Str("id", id).Str("entry", entry.String()).Msg("Completed entry")
	c.notify(id, entry)
	return true
}

// Clear removes the entry for id so that it can be requested again
func (c *Cache) Clear(id string) bool {
	c.mutex.Lock()
	_, exists := c.entries[id]
	if exists {
		delete(c.entries, id)
		c.version++
	}
	c.mutex.Unlock()
	return exists
}

// ResetIfFailed turns a Failed entry back into Pending. It reports whether
// the caller now owns a new lookup for id.
func (c *Cache) ResetIfFailed(id string) bool {
	c.mutex.Lock()
	current, exists := c.entries[id]
	if !exists || current.State != Failed {
		c.mutex.Unlock()
		return false
	}
	c.entries[id] = PendingEntry()
	c.version++
	c.mutex.Unlock()

	c.log.Debug().Str("id", id).Msg("Reset failed entry to pending")
	c.notify(id, PendingEntry())
	return true
}

// Version increases on every change and can be used to detect staleness
func (c *Cache) Version() uint64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.version
}

func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Subscribe registers fn for change notifications. Listeners are called
// outside the cache lock and may read from the cache.
func (c *Cache) Subscribe(fn Listener) (unsubscribe func()) {
	c.mutex.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mutex.Lock()
			delete(c.listeners, id)
			c.mutex.Unlock()
		})
	}
}

func (c *Cache) notify(id string, entry Entry) {
	c.mutex.RLock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mutex.RUnlock()

	for _, fn := range listeners {
		fn(id, entry)
	}
}
