// Package singleflight runs at most one construction per key at a time.
//
// A flight stays registered until its function has returned, so anything the
// function publishes before returning is visible to every later caller of the
// same key.
package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// Group tracks the flights in progress, keyed by K. The zero value is ready
// to use.
type Group[K comparable, V any] struct {
	mu      sync.Mutex
	flights map[K]*flight[V]
}

// flight is one execution of a function and the callers waiting on it.
type flight[V any] struct {
	done chan struct{}

	// set by the leader before done is closed
	val V
	err error

	// guarded by Group.mu; final once the flight is unregistered
	joiners int
}

func (f *flight[V]) result() (V, error, bool) {
	return f.val, f.err, f.joiners > 0
}

// PanicError is delivered to every caller of a flight whose function panicked.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("singleflight: function panicked: %v", p.Value)
}

// begin returns the flight for key, registering a new one when none is
// running. leader is true when the caller must run the function. With join
// unset a busy key yields a nil flight.
func (g *Group[K, V]) begin(key K, join bool) (f *flight[V], leader bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if f, ok := g.flights[key]; ok {
		if !join {
			return nil, false
		}
		f.joiners++
		return f, false
	}
	if g.flights == nil {
		g.flights = make(map[K]*flight[V])
	}
	f = &flight[V]{done: make(chan struct{})}
	g.flights[key] = f
	return f, true
}

// run executes fn for f and releases every waiter. A panic in fn becomes a
// *PanicError.
func (g *Group[K, V]) run(f *flight[V], key K, fn func() (V, error)) {
	defer func() {
		if r := recover(); r != nil {
			f.err = &PanicError{Value: r}
		}

		g.mu.Lock()
		delete(g.flights, key)
		g.mu.Unlock()
		close(f.done)
	}()

	f.val, f.err = fn()
}

// Do runs fn unless a flight for key is already running, in which case it
// waits for that flight and returns its result. shared reports whether the
// result went to more than one caller.
func (g *Group[K, V]) Do(key K, fn func() (V, error)) (v V, err error, shared bool) {
	f, leader := g.begin(key, true)
	if leader {
		g.run(f, key, fn)
	} else {
		<-f.done
	}
	return f.result()
}

// TryDo is like Do but never waits on another caller. If a flight for key is
// already running, it returns immediately with ok set to false.
func (g *Group[K, V]) TryDo(key K, fn func() (V, error)) (v V, err error, ok bool) {
	f, leader := g.begin(key, false)
	if !leader {
		return v, nil, false
	}
	g.run(f, key, fn)
	return f.val, f.err, true
}

// DoContext is like Do but the caller stops waiting when ctx is done.
// Cancellation only abandons the wait: the function keeps running and
// other callers of the same key still receive its result.
func (g *Group[K, V]) DoContext(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	if err := ctx.Err(); err != nil {
		return v, err, false
	}

	f, leader := g.begin(key, true)
	if leader {
		go g.run(f, key, fn)
	}
	select {
	case <-ctx.Done():
		return v, ctx.Err(), false
	case <-f.done:
		return f.result()
	}
}

// InFlight returns the number of keys with a flight in progress.
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.flights)
}
