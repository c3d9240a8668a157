// Package devtools serves live inspection of registered component
// instances: dependency-graph snapshots over HTTP and a core event stream
// over WebSocket.
//
// Mount it next to the application's own routes:
//
//	dt := devtools.New(nil)
//	dt.Register("app", component)
//	http.ListenAndServe(":6061", dt.Handler())
package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/reva-ui/reva/pkg/reva"
)

// Config configures the devtools server.
type Config struct {
	// Logger receives request and hub logs. Defaults to slog.Default().
	Logger *slog.Logger

	// ServeMetrics mounts the Prometheus handler at /metrics.
	// Enabled by default when Config is nil.
	ServeMetrics bool
}

// Server exposes inspection endpoints over a set of registered components.
type Server struct {
	logger       *slog.Logger
	serveMetrics bool

	mu         sync.RWMutex
	components map[string]*reva.Component

	hub    *hub
	detach func()
}

// New creates a devtools server. A nil config serves metrics and logs to
// slog.Default().
func New(config *Config) *Server {
	if config == nil {
		config = &Config{ServeMetrics: true}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	s := &Server{
		logger:       config.Logger.With("component", "devtools"),
		serveMetrics: config.ServeMetrics,
		components:   make(map[string]*reva.Component),
		hub:          newHub(config.Logger),
	}
	s.detach = reva.RegisterHooks(s.hub.hooks())
	return s
}

// Register exposes a component instance under name. Re-registering a name
// replaces the previous instance.
func (s *Server) Register(name string, c *reva.Component) {
	s.mu.Lock()
	s.components[name] = c
	s.mu.Unlock()
	s.logger.Debug("component registered", "name", name)
}

// Deregister removes a component from the inspection surface.
func (s *Server) Deregister(name string) {
	s.mu.Lock()
	delete(s.components, name)
	s.mu.Unlock()
}

// Close detaches the server from the core hooks and drops all WebSocket
// clients.
func (s *Server) Close() {
	s.detach()
	s.hub.close()
}

// graphSnapshot is the wire form of a full inspection snapshot.
type graphSnapshot struct {
	Components map[string]reva.ComponentInfo `json:"components" yaml:"components"`
}

func (s *Server) snapshot() graphSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := graphSnapshot{Components: make(map[string]reva.ComponentInfo, len(s.components))}
	for name, c := range s.components {
		snap.Components[name] = c.Inspect()
	}
	return snap
}

// Handler returns the devtools HTTP surface:
//
//	GET /healthz            liveness probe
//	GET /graph              full snapshot as JSON
//	GET /graph.yaml         full snapshot as YAML
//	GET /components         registered names
//	GET /components/{name}  one component's snapshot
//	GET /events             WebSocket stream of core events
//	GET /metrics            Prometheus handler, when enabled
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/graph", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, s.snapshot())
	})

	r.Get("/graph.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		if err := yaml.NewEncoder(w).Encode(s.snapshot()); err != nil {
			s.logger.Error("yaml encode failed", "error", err)
		}
	})

	r.Get("/components", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.RLock()
		names := make([]string, 0, len(s.components))
		for name := range s.components {
			names = append(names, name)
		}
		s.mu.RUnlock()
		sort.Strings(names)
		s.writeJSON(w, map[string][]string{"components": names})
	})

	r.Get("/components/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		s.mu.RLock()
		c := s.components[name]
		s.mu.RUnlock()
		if c == nil {
			http.Error(w, "unknown component", http.StatusNotFound)
			return
		}
		s.writeJSON(w, c.Inspect())
	})

	r.Get("/events", s.hub.serveWS)

	if s.serveMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("json encode failed", "error", err)
	}
}
