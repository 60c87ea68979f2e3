package flyweight

import (
	"sync/atomic"
)

// Stats holds cache performance statistics
type Stats struct {
	// hits is the number of lookups answered by a live instance
	hits int64

	// misses is the number of lookups that found no live instance
	misses int64

	// constructions is the number of successful factory calls
	constructions int64

	// constructionErrors is the number of failed factory calls
	constructionErrors int64

	// joins is the number of callers that waited on another caller's construction
	joins int64

	// rejected is the number of calls refused for unsupported arguments
	rejected int64

	// reclaimed is the number of slots removed by the runtime cleanup
	reclaimed int64

	// purged is the number of expired slots removed by lookups or Purge
	purged int64

	// liveEntries is the number of live instances at the last Stats call
	liveEntries int64

	// inFlight is the number of factory calls currently running
	inFlight int64
}

// Hits returns the number of cache hits
func (s *Stats) Hits() int64 {
	return atomic.LoadInt64(&s.hits)
}

// Misses returns the number of cache misses
func (s *Stats) Misses() int64 {
	return atomic.LoadInt64(&s.misses)
}

// Constructions returns the number of successful factory calls
func (s *Stats) Constructions() int64 {
	return atomic.LoadInt64(&s.constructions)
}

// ConstructionErrors returns the number of failed factory calls
func (s *Stats) ConstructionErrors() int64 {
	return atomic.LoadInt64(&s.constructionErrors)
}

// Joins returns the number of callers that joined an in-flight construction
func (s *Stats) Joins() int64 {
	return atomic.LoadInt64(&s.joins)
}

// Rejected returns the number of calls rejected for unsupported arguments
func (s *Stats) Rejected() int64 {
	return atomic.LoadInt64(&s.rejected)
}

// Reclaimed returns the number of slots removed after the runtime collected their instance
func (s *Stats) Reclaimed() int64 {
	return atomic.LoadInt64(&s.reclaimed)
}

// Purged returns the number of expired slots removed by lookups or Purge
func (s *Stats) Purged() int64 {
	return atomic.LoadInt64(&s.purged)
}

// LiveEntries returns the number of live instances
func (s *Stats) LiveEntries() int64 {
	return atomic.LoadInt64(&s.liveEntries)
}

// InFlight returns the number of constructions in progress
func (s *Stats) InFlight() int64 {
	return atomic.LoadInt64(&s.inFlight)
}

// HitRate returns the cache hit rate as a percentage (0-100)
func (s *Stats) HitRate() float64 {
	hits := s.Hits()
	total := hits + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Total returns the total number of lookups (hits + misses)
func (s *Stats) Total() int64 {
	return s.Hits() + s.Misses()
}

// Reset resets all counters to zero. Point-in-time values are left alone.
func (s *Stats) Reset() {
	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.constructions, 0)
	atomic.StoreInt64(&s.constructionErrors, 0)
	atomic.StoreInt64(&s.joins, 0)
	atomic.StoreInt64(&s.rejected, 0)
	atomic.StoreInt64(&s.reclaimed, 0)
	atomic.StoreInt64(&s.purged, 0)
}

// Internal methods for updating stats (not exported)

func (s *Stats) incHits() {
	atomic.AddInt64(&s.hits, 1)
}

func (s *Stats) incMisses() {
	atomic.AddInt64(&s.misses, 1)
}

func (s *Stats) incConstructions() {
	atomic.AddInt64(&s.constructions, 1)
}

func (s *Stats) incConstructionErrors() {
	atomic.AddInt64(&s.constructionErrors, 1)
}

func (s *Stats) incJoins() {
	atomic.AddInt64(&s.joins, 1)
}

func (s *Stats) incRejected() {
	atomic.AddInt64(&s.rejected, 1)
}

func (s *Stats) incReclaimed() {
	atomic.AddInt64(&s.reclaimed, 1)
}

func (s *Stats) incPurged() {
	atomic.AddInt64(&s.purged, 1)
}

func (s *Stats) setLiveEntries(count int64) {
	atomic.StoreInt64(&s.liveEntries, count)
}

func (s *Stats) setInFlight(count int64) {
	atomic.StoreInt64(&s.inFlight, count)
}
