package entry

import (
	"sync"
	"sync/atomic"
	"time"
	"weak"
)

// Entry is a weak slot for one cached instance plus access bookkeeping.
// It never keeps the instance alive.
type Entry[T any] struct {
	ptr weak.Pointer[T]

	// CreatedAt is when the instance was stored
	CreatedAt time.Time

	// accessedAt is protected by mu
	accessedAt time.Time
	mu         sync.RWMutex

	hits atomic.Int64
}

// New creates an entry that refers weakly to v
func New[T any](v *T) *Entry[T] {
	now := time.Now()
	return &Entry[T]{
		ptr:        weak.Make(v),
		CreatedAt:  now,
		accessedAt: now,
	}
}

// Value returns a strong pointer to the instance, or nil if it was reclaimed
func (e *Entry[T]) Value() *T {
	return e.ptr.Value()
}

// IsExpired returns true once the instance has been reclaimed
func (e *Entry[T]) IsExpired() bool {
	return e.ptr.Value() == nil
}

// Age returns how long ago this entry was created
func (e *Entry[T]) Age() time.Duration {
	return time.Since(e.CreatedAt)
}

// AccessedAt returns the time of the last hit
func (e *Entry[T]) AccessedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.accessedAt
}

// TimeSinceLastAccess returns how long ago this entry was last accessed
func (e *Entry[T]) TimeSinceLastAccess() time.Duration {
	return time.Since(e.AccessedAt())
}

// Touch records a hit
func (e *Entry[T]) Touch() {
	e.hits.Add(1)
	e.mu.Lock()
	e.accessedAt = time.Now()
	e.mu.Unlock()
}

// Hits returns the number of hits served from this entry
func (e *Entry[T]) Hits() int64 {
	return e.hits.Load()
}
