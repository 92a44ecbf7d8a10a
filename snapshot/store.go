package snapshot

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// shardCount is the number of shards. Must be a power of 2.
const (
	shardCount = 16
	shardMask  = shardCount - 1
)

// Snapshot is an opaque, backend-defined capture of a surface's pixels.
type Snapshot = any

// Key addresses one snapshot: the render identity fingerprint it was
// captured under and the tile key it belongs to.
type Key struct {
	Identity string
	Tile     string
}

// Stats contains store statistics for monitoring.
type Stats struct {
	// Len is the current number of snapshots.
	Len int
	// Hits is the number of successful lookups.
	Hits uint64
	// Misses is the number of failed lookups.
	Misses uint64
	// Evictions is the number of snapshots dropped by the LRU bound.
	Evictions uint64
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity bounds each shard to n snapshots, evicting the least
// recently used. n <= 0 means unbounded (the default).
func WithCapacity(n int) Option {
	return func(s *Store) {
		s.capacity = n
	}
}

// Store maps (identity, tile) keys to snapshots.
type Store struct {
	shards   [shardCount]*shard
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard struct {
	mu      sync.Mutex
	entries map[Key]*entry
	lru     lruList
}

type entry struct {
	value Snapshot
	node  *lruNode
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[Key]*entry)}
	}
	return s
}

// shardFor returns the shard for a key. Only the tile part is hashed so
// that all identities of one tile land in the same shard.
func (s *Store) shardFor(key Key) *shard {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key.Tile)) // fnv.Write never returns an error
	return s.shards[h.Sum64()&shardMask]
}

// Get returns the snapshot stored under key.
func (s *Store) Get(key Key) (Snapshot, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if ok {
		sh.lru.MoveToFront(e.node)
	}
	sh.mu.Unlock()

	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return e.value, true
}

// Has reports whether a snapshot is stored under key without touching
// statistics or recency.
func (s *Store) Has(key Key) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, ok := sh.entries[key]
	sh.mu.Unlock()
	return ok
}

// Put stores value under key, replacing any previous snapshot.
func (s *Store) Put(key Key, value Snapshot) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if e, ok := sh.entries[key]; ok {
		e.value = value
		sh.lru.MoveToFront(e.node)
		return
	}

	for s.capacity > 0 && sh.lru.Len() >= s.capacity {
		oldest, ok := sh.lru.RemoveOldest()
		if !ok {
			break
		}
		delete(sh.entries, oldest)
		s.evictions.Add(1)
	}

	sh.entries[key] = &entry{value: value, node: sh.lru.PushFront(key)}
}

// Take returns and removes the snapshot stored under key.
func (s *Store) Take(key Key) (Snapshot, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if ok {
		sh.lru.Remove(e.node)
		delete(sh.entries, key)
	}
	sh.mu.Unlock()

	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return e.value, true
}

// Delete removes the snapshot stored under key.
// Returns true if an entry was removed.
func (s *Store) Delete(key Key) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		return false
	}
	sh.lru.Remove(e.node)
	delete(sh.entries, key)
	return true
}

// DeleteTile removes the snapshots of tile under every identity.
// Returns the number of entries removed.
func (s *Store) DeleteTile(tile string) int {
	sh := s.shardFor(Key{Tile: tile})
	sh.mu.Lock()
	defer sh.mu.Unlock()

	n := 0
	for k, e := range sh.entries {
		if k.Tile == tile {
			sh.lru.Remove(e.node)
			delete(sh.entries, k)
			n++
		}
	}
	return n
}

// Clear removes every snapshot.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.entries = make(map[Key]*entry)
		sh.lru.Clear()
		sh.mu.Unlock()
	}
}

// Len returns the total number of snapshots.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}

// Stats returns current statistics.
func (s *Store) Stats() Stats {
	return Stats{
		Len:       s.Len(),
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
}
