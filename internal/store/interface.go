package store

import (
	"github.com/vnykmshr/flyweight-go/internal/entry"
)

// Store defines the interface for weak-slot storage backends.
// Implementations hold entries only; they never keep an instance alive.
type Store[T any] interface {
	// Get retrieves the live entry for key
	// An expired entry is removed on the way and reported as not found
	Get(key string) (*entry.Entry[T], bool)

	// Set stores an entry with the given key, replacing any previous one
	Set(key string, e *entry.Entry[T])

	// CompareAndDelete removes the entry for key only if it is still e
	// Returns true if the entry was removed
	CompareAndDelete(key string, e *entry.Entry[T]) bool

	// Keys returns the keys of all live entries
	Keys() []string

	// Len returns the number of live entries
	Len() int

	// Range calls fn for every live entry until fn returns false
	Range(fn func(key string, e *entry.Entry[T]) bool)

	// Cleanup removes expired entries
	// Returns the number of entries removed
	Cleanup() int

	// SetCleanupCallback sets a callback function that will be called
	// when expired entries are removed by Get or Cleanup
	SetCleanupCallback(callback CleanupCallback)

	// Clear removes all entries
	Clear()
}

// CleanupCallback is called with the key of each expired entry a store removes
type CleanupCallback func(key string)
