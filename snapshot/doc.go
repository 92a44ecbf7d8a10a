// Package snapshot stores opaque tile pixel snapshots keyed by render
// identity and tile key.
//
// The store has no invalidation policy of its own: callers delete entries
// when the covering tile is scheduled for bake and clear everything when the
// render identity changes. An optional per-shard capacity turns on LRU
// eviction; an evicted snapshot only costs a rebake.
//
// Store is safe for concurrent use. Entries are spread over 16 shards, each
// with its own lock, so the bake worker and the coordinating goroutine rarely
// contend.
package snapshot
