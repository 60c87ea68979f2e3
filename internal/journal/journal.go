// Package journal keeps a bounded log of recent constructions.
//
// Records carry keys, timings and error text only. A nil *Journal is valid
// and records nothing.
package journal

import (
	"slices"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Record describes one factory call.
type Record struct {
	Key           string        `json:"key"`
	ConstructedAt time.Time     `json:"constructed_at"`
	Duration      time.Duration `json:"duration"`
	Err           string        `json:"error,omitempty"`
}

// Journal is a fixed-size, concurrency-safe log. Once full, the oldest
// record is dropped for each new one.
type Journal struct {
	cache *lru.Cache[uint64, Record]
	size  int
	seq   atomic.Uint64
}

// New creates a journal holding up to size records. A size of zero or
// less disables journaling and returns a nil journal.
func New(size int) (*Journal, error) {
	if size <= 0 {
		return nil, nil
	}
	cache, err := lru.New[uint64, Record](size)
	if err != nil {
		return nil, err
	}
	return &Journal{cache: cache, size: size}, nil
}

// Add appends a record for a finished construction.
func (j *Journal) Add(key string, start time.Time, err error) {
	if j == nil {
		return
	}
	r := Record{
		Key:           key,
		ConstructedAt: start,
		Duration:      time.Since(start),
	}
	if err != nil {
		r.Err = err.Error()
	}
	j.cache.Add(j.seq.Add(1), r)
}

// Recent returns up to n records, newest first. n <= 0 returns all.
func (j *Journal) Recent(n int) []Record {
	if j == nil {
		return nil
	}
	records := j.cache.Values()
	slices.Reverse(records)
	if n > 0 && n < len(records) {
		records = records[:n]
	}
	return records
}

// Size returns the capacity, or zero for a disabled journal.
func (j *Journal) Size() int {
	if j == nil {
		return 0
	}
	return j.size
}
