// Package locktable provides per-path reader-writer locks with refcounted
// lazy creation and teardown, the concurrency primitive the read-cache and
// block-sparse compression layers serialize their per-path state through.
package locktable

import "sync"

// entry is one path's rwlock plus the refcount of callers currently holding
// or waiting to hold it. The table mutex (not entry.lock) guards refcount and
// the table's membership; entry.lock guards the path's critical section.
type entry struct {
	lock     sync.RWMutex
	refcount int
}

// Table is a hash map of path to {rwlock, refcount}. Entries are created
// lazily on first acquire and removed once the last holder releases.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty lock table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Handle is returned by AcquireRead/AcquireWrite; Release must be called
// exactly once to unwind it.
type Handle struct {
	table *Table
	path  string
	e     *entry
	write bool
}

// AcquireRead looks up or creates path's entry, takes a read lock on it, and
// returns a Handle to release it with.
func (t *Table) AcquireRead(path string) *Handle {
	e := t.retain(path)
	e.lock.RLock()
	return &Handle{table: t, path: path, e: e, write: false}
}

// AcquireWrite is the write-lock analogue of AcquireRead.
func (t *Table) AcquireWrite(path string) *Handle {
	e := t.retain(path)
	e.lock.Lock()
	return &Handle{table: t, path: path, e: e, write: true}
}

// retain increments path's refcount under the table mutex, creating the
// entry if it does not exist, and returns it. The table mutex is released
// before the caller takes the entry's own rwlock: increment under the table
// mutex, release the table mutex, then acquire the per-path rwlock.
func (t *Table) retain(path string) *entry {
	t.mu.Lock()
	e, ok := t.entries[path]
	if !ok {
		e = &entry{}
		t.entries[path] = e
	}
	e.refcount++
	t.mu.Unlock()
	return e
}

// Release unlocks the held rwlock, then decrements the entry's refcount;
// the entry is removed from the table once the refcount reaches zero.
func (h *Handle) Release() {
	if h.write {
		h.e.lock.Unlock()
	} else {
		h.e.lock.RUnlock()
	}
	t := h.table
	t.mu.Lock()
	h.e.refcount--
	if h.e.refcount == 0 {
		if cur, ok := t.entries[h.path]; ok && cur == h.e {
			delete(t.entries, h.path)
		}
	}
	t.mu.Unlock()
}

// Upgrade releases the held read lock and re-acquires a write lock on the
// same path. There is no true upgrade primitive: callers must re-check any
// state they read under the old lock, since another holder may have
// mutated it between the release and the re-acquire.
func (h *Handle) Upgrade() *Handle {
	if h.write {
		return h
	}
	path := h.path
	t := h.table
	h.Release()
	return t.AcquireWrite(path)
}

// djb2 is the hash function the path table uses internally for any
// fixed-bucket-count variant; Go's builtin map makes an explicit bucket
// array unnecessary, but the hash is kept for callers that want a stable
// sharding key (e.g. sharding the table mutex across N stripes).
func djb2(b []byte) uint64 {
	var h uint64 = 5381
	for _, c := range b {
		h = ((h << 5) + h) + uint64(c)
	}
	return h
}

// ShardIndex returns djb2(path) mod n, for callers that stripe table
// mutexes across n shards to reduce contention.
func ShardIndex(path string, n int) int {
	if n <= 0 {
		return 0
	}
	return int(djb2([]byte(path)) % uint64(n))
}

// Len reports the number of live entries, for tests asserting the
// refcount-to-zero cleanup invariant.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
