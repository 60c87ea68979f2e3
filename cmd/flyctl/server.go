package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vnykmshr/flyweight-go/pkg/argkey"
	"github.com/vnykmshr/flyweight-go/pkg/flyweight"
	"github.com/vnykmshr/flyweight-go/pkg/metrics"
)

const defaultTypeID = "shape"

// shape is the demo instance type. Serial tells instances apart.
type shape struct {
	Kind      string    `json:"kind"`
	Args      any       `json:"args"`
	Serial    uint64    `json:"serial"`
	CreatedAt time.Time `json:"createdAt"`
}

type internResponse struct {
	TypeID string `json:"typeId"`
	Key    string `json:"key"`
	Serial uint64 `json:"serial"`
	Pinned bool   `json:"pinned"`
	Shape  *shape `json:"shape"`
}

// server interns shapes in a flyweight registry. Pinned shapes are held
// strongly so they survive collection until unpinned.
type server struct {
	registry *flyweight.Registry
	promReg  *prometheus.Registry
	logger   flyweight.Logger
	serial   atomic.Uint64

	mu   sync.Mutex
	pins map[string]*shape
}

func newServer(configPath string) (*server, error) {
	fc := &flyweight.FileConfig{}
	if configPath != "" {
		var err error
		if fc, err = flyweight.LoadConfig(configPath); err != nil {
			return nil, err
		}
	}

	promReg := prometheus.NewRegistry()
	exporter, err := metrics.NewPrometheusExporter(
		metrics.NewDefaultConfig().WithDetailedTimings(true),
		&metrics.PrometheusConfig{Registry: promReg},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	cfg, err := fc.Apply(exporter)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.WithMetricsExporter(exporter, "")
	}
	if fc.LogLevel == "" {
		cfg.WithLogger(flyweight.NewDefaultLogger(flyweight.LogLevelInfo))
	}

	registry, err := flyweight.NewRegistry(cfg)
	if err != nil {
		return nil, err
	}

	return &server{
		registry: registry,
		promReg:  promReg,
		logger:   cfg.Logger,
		pins:     make(map[string]*shape),
	}, nil
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/intern", s.handleIntern)
	mux.HandleFunc("/pins", s.handlePins)
	mux.Handle("/debug/flyweight/", http.StripPrefix("/debug/flyweight", s.registry.DebugHandler()))
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	return mux
}

func (s *server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *server) Close() error {
	return s.registry.Close()
}

func (s *server) factory(typeID string) flyweight.Factory[shape] {
	return func(args any) (*shape, error) {
		return &shape{
			Kind:      typeID,
			Args:      args,
			Serial:    s.serial.Add(1),
			CreatedAt: time.Now(),
		}, nil
	}
}

// handleIntern serves GET /intern?args=<json>[&type=<id>][&pin=true]
func (s *server) handleIntern(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	raw := q.Get("args")
	if raw == "" {
		http.Error(w, "missing args parameter", http.StatusBadRequest)
		return
	}
	args, err := argkey.FromJSON([]byte(raw))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	typeID := q.Get("type")
	if typeID == "" {
		typeID = defaultTypeID
	}
	pin, _ := strconv.ParseBool(q.Get("pin"))

	sh, err := flyweight.GetOrCreateContext(r.Context(), s.registry, typeID, args, s.factory(typeID))
	switch {
	case errors.Is(err, flyweight.ErrUnsupportedArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, flyweight.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	key := argkey.MustEncode(args)
	if pin {
		s.mu.Lock()
		s.pins[typeID+" "+key] = sh
		s.mu.Unlock()
	}

	writeJSON(w, internResponse{
		TypeID: typeID,
		Key:    key,
		Serial: sh.Serial,
		Pinned: pin,
		Shape:  sh,
	})
}

// handlePins lists pinned shapes on GET and drops them all on DELETE
func (s *server) handlePins(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		keys := make([]string, 0, len(s.pins))
		for k := range s.pins {
			keys = append(keys, k)
		}
		s.mu.Unlock()
		sort.Strings(keys)
		writeJSON(w, map[string]any{"pins": keys})

	case http.MethodDelete:
		s.mu.Lock()
		n := len(s.pins)
		clear(s.pins)
		s.mu.Unlock()
		s.logger.Info("Dropped pins", flyweight.F("count", n))
		writeJSON(w, map[string]any{"dropped": n})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
	}
}
