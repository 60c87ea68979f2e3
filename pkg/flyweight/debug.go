package flyweight

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vnykmshr/flyweight-go/internal/entry"
)

// DebugResponse represents the JSON response structure for a cache debug endpoint
type DebugResponse struct {
	TypeID        string              `json:"typeId"`
	Stats         *DebugStats         `json:"stats"`
	Entries       []DebugEntry        `json:"entries,omitempty"`
	Constructions []DebugConstruction `json:"constructions,omitempty"`
}

// DebugStats represents cache statistics in the debug response
type DebugStats struct {
	Hits               int64        `json:"hits"`
	Misses             int64        `json:"misses"`
	Constructions      int64        `json:"constructions"`
	ConstructionErrors int64        `json:"constructionErrors"`
	Joins              int64        `json:"joins"`
	Rejected           int64        `json:"rejected"`
	Reclaimed          int64        `json:"reclaimed"`
	Purged             int64        `json:"purged"`
	LiveEntries        int64        `json:"liveEntries"`
	InFlight           int64        `json:"inFlight"`
	HitRate            float64      `json:"hitRate"`
	Total              int64        `json:"total"`
	Config             *DebugConfig `json:"config"`
}

// DebugConfig represents cache configuration in the debug response
type DebugConfig struct {
	ShardCount     int  `json:"shardCount"`
	ReclaimCleanup bool `json:"reclaimCleanup"`
	JournalSize    int  `json:"journalSize"`
}

// DebugEntry represents a live slot with its metadata. Instances are never
// included.
type DebugEntry struct {
	Key        string    `json:"key"`
	CreatedAt  time.Time `json:"createdAt"`
	Age        string    `json:"age"`
	Hits       int64     `json:"hits"`
	LastAccess string    `json:"lastAccess"`
}

// DebugConstruction represents one recent factory call
type DebugConstruction struct {
	Key           string    `json:"key"`
	ConstructedAt time.Time `json:"constructedAt"`
	Duration      string    `json:"duration"`
	Error         string    `json:"error,omitempty"`
}

// DebugRegistryResponse represents the JSON response structure for a registry debug endpoint
type DebugRegistryResponse struct {
	Partitions []*DebugResponse `json:"partitions"`
}

// debugSnapshot collects the debug view of the cache
func (c *Cache[T]) debugSnapshot(includeEntries bool) *DebugResponse {
	stats := c.Stats()
	response := &DebugResponse{
		TypeID: c.typeID,
		Stats: &DebugStats{
			Hits:               stats.Hits(),
			Misses:             stats.Misses(),
			Constructions:      stats.Constructions(),
			ConstructionErrors: stats.ConstructionErrors(),
			Joins:              stats.Joins(),
			Rejected:           stats.Rejected(),
			Reclaimed:          stats.Reclaimed(),
			Purged:             stats.Purged(),
			LiveEntries:        stats.LiveEntries(),
			InFlight:           stats.InFlight(),
			HitRate:            stats.HitRate(),
			Total:              stats.Total(),
			Config: &DebugConfig{
				ShardCount:     c.config.ShardCount,
				ReclaimCleanup: c.config.ReclaimCleanup,
				JournalSize:    c.journal.Size(),
			},
		},
	}

	if !includeEntries {
		return response
	}

	response.Entries = make([]DebugEntry, 0, c.store.Len())
	c.store.Range(func(key string, e *entry.Entry[T]) bool {
		response.Entries = append(response.Entries, DebugEntry{
			Key:        key,
			CreatedAt:  e.CreatedAt,
			Age:        formatDuration(e.Age()),
			Hits:       e.Hits(),
			LastAccess: formatDuration(e.TimeSinceLastAccess()),
		})
		return true
	})
	sort.Slice(response.Entries, func(i, j int) bool {
		return response.Entries[i].Key < response.Entries[j].Key
	})

	for _, r := range c.journal.Recent(0) {
		response.Constructions = append(response.Constructions, DebugConstruction{
			Key:           r.Key,
			ConstructedAt: r.ConstructedAt,
			Duration:      formatDuration(r.Duration),
			Error:         r.Err,
		})
	}
	return response
}

// DebugHandler returns an HTTP handler that provides cache debug information
// The handler supports the following endpoints:
//   - GET /stats - Returns only cache statistics
//   - GET /keys - Returns statistics, live entries and recent constructions
//   - GET / - Same as /keys
func (c *Cache[T]) DebugHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeDebugJSON(w, c.debugSnapshot(includeEntries(r)))
	})
}

// NewDebugServer creates a new HTTP server with cache debug endpoints
func (c *Cache[T]) NewDebugServer(addr string) *http.Server {
	return newDebugServer(addr, c.DebugHandler())
}

func includeEntries(r *http.Request) bool {
	return !strings.HasSuffix(r.URL.Path, "/stats")
}

func writeDebugJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}

func newDebugServer(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/stats", handler)
	mux.Handle("/keys", handler)
	mux.Handle("/", handler)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Microsecond {
		return d.String()
	}
	if d < time.Millisecond {
		return d.Truncate(time.Microsecond).String()
	}
	if d < time.Second {
		return d.Truncate(time.Millisecond).String()
	}
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	return d.Truncate(time.Hour).String()
}
