package memory

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/vnykmshr/flyweight-go/internal/entry"
	"github.com/vnykmshr/flyweight-go/internal/store"
)

// DefaultShardCount is used when New is given a non-positive shard count
const DefaultShardCount = 32

// Store implements an in-memory weak-slot store split into shards.
// Each shard has its own lock, selected by the xxhash of the key.
type Store[T any] struct {
	shards   []shard[T]
	mask     uint64
	callback atomic.Pointer[store.CleanupCallback]
}

type shard[T any] struct {
	mu      sync.RWMutex
	entries map[string]*entry.Entry[T]
}

// New creates a new memory store. shardCount is rounded up to a power of two.
func New[T any](shardCount int) *Store[T] {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	n := 1 << bits.Len(uint(shardCount-1))

	s := &Store[T]{
		shards: make([]shard[T], n),
		mask:   uint64(n - 1),
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*entry.Entry[T])
	}
	return s
}

func (s *Store[T]) shardFor(key string) *shard[T] {
	return &s.shards[xxhash.Sum64String(key)&s.mask]
}

// ShardCount returns the number of shards
func (s *Store[T]) ShardCount() int {
	return len(s.shards)
}

// Get retrieves the live entry for key
func (s *Store[T]) Get(key string) (*entry.Entry[T], bool) {
	sh := s.shardFor(key)

	sh.mu.RLock()
	e, found := sh.entries[key]
	sh.mu.RUnlock()
	if !found {
		return nil, false
	}

	if e.IsExpired() {
		if s.CompareAndDelete(key, e) {
			s.notify(key)
		}
		return nil, false
	}
	return e, true
}

// Set stores an entry with the given key
func (s *Store[T]) Set(key string, e *entry.Entry[T]) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.entries[key] = e
	sh.mu.Unlock()
}

// CompareAndDelete removes the entry for key only if it is still e
func (s *Store[T]) CompareAndDelete(key string, e *entry.Entry[T]) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if cur, ok := sh.entries[key]; ok && cur == e {
		delete(sh.entries, key)
		return true
	}
	return false
}

// Keys returns the keys of all live entries
func (s *Store[T]) Keys() []string {
	var keys []string
	s.Range(func(key string, _ *entry.Entry[T]) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Len returns the number of live entries
func (s *Store[T]) Len() int {
	count := 0
	s.Range(func(string, *entry.Entry[T]) bool {
		count++
		return true
	})
	return count
}

// Range calls fn for every live entry until fn returns false.
// fn runs without any shard lock held.
func (s *Store[T]) Range(fn func(key string, e *entry.Entry[T]) bool) {
	type item struct {
		key string
		e   *entry.Entry[T]
	}

	for i := range s.shards {
		sh := &s.shards[i]

		sh.mu.RLock()
		items := make([]item, 0, len(sh.entries))
		for k, e := range sh.entries {
			if !e.IsExpired() {
				items = append(items, item{k, e})
			}
		}
		sh.mu.RUnlock()

		for _, it := range items {
			if !fn(it.key, it.e) {
				return
			}
		}
	}
}

// Cleanup removes expired entries and returns the number of entries removed
func (s *Store[T]) Cleanup() int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]

		var keys []string
		sh.mu.Lock()
		for k, e := range sh.entries {
			if e.IsExpired() {
				delete(sh.entries, k)
				keys = append(keys, k)
			}
		}
		sh.mu.Unlock()

		for _, k := range keys {
			s.notify(k)
		}
		removed += len(keys)
	}
	return removed
}

// SetCleanupCallback sets the callback for removed expired entries
func (s *Store[T]) SetCleanupCallback(callback store.CleanupCallback) {
	if callback == nil {
		s.callback.Store(nil)
		return
	}
	s.callback.Store(&callback)
}

// Clear removes all entries
func (s *Store[T]) Clear() {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		clear(sh.entries)
		sh.mu.Unlock()
	}
}

func (s *Store[T]) notify(key string) {
	if cb := s.callback.Load(); cb != nil {
		(*cb)(key)
	}
}

// Ensure Store implements the required interface
var _ store.Store[int] = (*Store[int])(nil)
