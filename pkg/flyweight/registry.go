package flyweight

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// partition is the type-erased view of a Cache the registry works with
type partition interface {
	TypeID() string
	Stats() *Stats
	Len() int
	Purge() int
	Close() error
	instanceType() reflect.Type
	debugSnapshot(includeEntries bool) *DebugResponse
}

func (c *Cache[T]) instanceType() reflect.Type {
	return reflect.TypeFor[T]()
}

// Registry holds one cache partition per type id. Partitions are created on
// first use and share the registry's configuration.
type Registry struct {
	config *Config

	mu         sync.RWMutex
	partitions map[string]partition
	closed     bool
}

// NewRegistry creates an empty registry. Every partition is created with a
// copy of config whose metrics cache name defaults to the type id.
func NewRegistry(config *Config) (*Registry, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		config:     config,
		partitions: make(map[string]partition),
	}, nil
}

// For returns the partition for typeID, creating it on first use.
// A type id is bound to the instance type it was first requested with.
func For[T any](r *Registry, typeID string) (*Cache[T], error) {
	r.mu.RLock()
	p, ok := r.partitions[typeID]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return partitionAs[T](p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if p, ok := r.partitions[typeID]; ok {
		return partitionAs[T](p)
	}

	c, err := New[T](typeID, r.partitionConfig(typeID))
	if err != nil {
		return nil, err
	}
	r.partitions[typeID] = c
	return c, nil
}

func partitionAs[T any](p partition) (*Cache[T], error) {
	c, ok := p.(*Cache[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %s, requested %s",
			ErrPartitionTypeMismatch, p.TypeID(), p.instanceType(), reflect.TypeFor[T]())
	}
	return c, nil
}

func (r *Registry) partitionConfig(typeID string) *Config {
	cfg := r.config.clone()
	if cfg.Metrics != nil && cfg.Metrics.CacheName == "" {
		cfg.Metrics.CacheName = typeID
	}
	return cfg
}

// GetOrCreate returns the shared instance of the typeID partition for args,
// constructing it with factory when no live instance exists
func GetOrCreate[T any](r *Registry, typeID string, args any, factory Factory[T]) (*T, error) {
	c, err := For[T](r, typeID)
	if err != nil {
		return nil, err
	}
	return c.GetOrCreate(args, factory)
}

// GetOrCreateContext is GetOrCreate with a cancellable wait
func GetOrCreateContext[T any](ctx context.Context, r *Registry, typeID string, args any, factory Factory[T]) (*T, error) {
	c, err := For[T](r, typeID)
	if err != nil {
		return nil, err
	}
	return c.GetOrCreateContext(ctx, args, factory)
}

// TypeIDs returns the sorted type ids of all partitions
func (r *Registry) TypeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.partitions))
	for id := range r.partitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// snapshot returns the partitions sorted by type id
func (r *Registry) snapshot() []partition {
	r.mu.RLock()
	parts := make([]partition, 0, len(r.partitions))
	for _, p := range r.partitions {
		parts = append(parts, p)
	}
	r.mu.RUnlock()

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].TypeID() < parts[j].TypeID()
	})
	return parts
}

// Len returns the number of live instances across all partitions
func (r *Registry) Len() int {
	total := 0
	for _, p := range r.snapshot() {
		total += p.Len()
	}
	return total
}

// Purge removes expired slots from every partition
func (r *Registry) Purge() int {
	total := 0
	for _, p := range r.snapshot() {
		total += p.Purge()
	}
	return total
}

// Stats returns the statistics of every partition keyed by type id
func (r *Registry) Stats() map[string]*Stats {
	parts := r.snapshot()
	out := make(map[string]*Stats, len(parts))
	for _, p := range parts {
		out[p.TypeID()] = p.Stats()
	}
	return out
}

// Close closes every partition. Later calls to For fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	parts := make([]partition, 0, len(r.partitions))
	for _, p := range r.partitions {
		parts = append(parts, p)
	}
	r.mu.Unlock()

	for _, p := range parts {
		_ = p.Close()
	}
	return nil
}

// DebugHandler returns an HTTP handler that reports every partition.
// Paths ending in /stats omit entries and constructions.
func (r *Registry) DebugHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		entries := includeEntries(req)
		filter := strings.TrimSpace(req.URL.Query().Get("type"))

		response := DebugRegistryResponse{Partitions: make([]*DebugResponse, 0)}
		for _, p := range r.snapshot() {
			if filter != "" && p.TypeID() != filter {
				continue
			}
			response.Partitions = append(response.Partitions, p.debugSnapshot(entries))
		}
		writeDebugJSON(w, response)
	})
}

// NewDebugServer creates a new HTTP server with registry debug endpoints
func (r *Registry) NewDebugServer(addr string) *http.Server {
	return newDebugServer(addr, r.DebugHandler())
}
