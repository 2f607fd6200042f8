package extcache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryBackend is the default in-process Backend, built on go-cache.
// Entries never expire on their own (the read-cache layer owns eviction
// via explicit Remove calls on truncate/unlink); go-cache's janitor is
// disabled by passing NoExpiration as both the default expiration and the
// cleanup interval.
type memoryBackend struct {
	c *gocache.Cache
}

// NewMemory returns a Backend with no built-in expiry, sized only by how
// many keys the read-cache layer chooses to keep.
func NewMemory() Backend {
	return &memoryBackend{c: gocache.New(gocache.NoExpiration, gocache.NoExpiration)}
}

func (m *memoryBackend) Insert(key string, value []byte) error {
	m.c.Set(key, value, time.Duration(gocache.NoExpiration))
	return nil
}

func (m *memoryBackend) Get(key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (m *memoryBackend) Contains(key string) bool {
	_, ok := m.c.Get(key)
	return ok
}

func (m *memoryBackend) Remove(key string) error {
	m.c.Delete(key)
	return nil
}

func (m *memoryBackend) Count() int {
	return m.c.ItemCount()
}

func (m *memoryBackend) Destroy() error {
	m.c.Flush()
	return nil
}
