// Package devtools provides an HTTP inspector for strata store registries:
// JSON snapshots, path reads and writes for debugging, a websocket stream of
// state snapshots, and a Prometheus scrape endpoint.
//
// The stream is an observer surface, not a synchronization protocol: clients
// receive whole snapshots and cannot replay or reconcile them.
package devtools

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strata-dev/strata/pkg/strata"
)

// Frame is one websocket message: a full snapshot of a store after a change.
type Frame struct {
	Store string `json:"store"`
	Seq   uint64 `json:"seq"`
	Data  any    `json:"data"`
}

// Server inspects the stores of a Registry over HTTP.
type Server struct {
	registry *strata.Registry
	router   chi.Router
	upgrader websocket.Upgrader
	seq      uint64
}

// New creates an inspector over registry.
func New(registry *strata.Registry) *Server {
	s := &Server{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Debug surface; bind it to localhost.
			},
		},
	}

	r := chi.NewRouter()
	r.Get("/stores", s.handleNames)
	r.Get("/stores/{name}", s.handleSnapshot)
	r.Get("/stores/{name}/value", s.handleGet)
	r.Post("/stores/{name}/value", s.handleSet)
	r.Get("/stores/{name}/watch", s.handleWatch)
	r.Handle("/metrics", promhttp.Handler())
	s.router = r

	return s
}

// Handler returns the HTTP handler for the inspector.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stores": s.registry.Names()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	store, ok := s.registry.Get(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name": store.Name(),
		"data": store.Data(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	store, ok := s.registry.Get(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	path := r.URL.Query().Get("path")
	value, err := store.Get(path)
	if err != nil {
		writeError(w, err)
		return
	}
	if node, isNode := value.(*strata.Node); isNode {
		value = node.Snapshot()
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "value": value})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	store, ok := s.registry.Get(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	var value any
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	path := r.URL.Query().Get("path")
	if err := store.Set(path, value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "value": value})
}

// handleWatch upgrades to a websocket and pushes a snapshot frame for every
// notification wave on the store, plus one initial frame.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	store, ok := s.registry.Get(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	push := func() {
		frame := Frame{
			Store: store.Name(),
			Seq:   atomic.AddUint64(&s.seq, 1),
			Data:  store.Data(),
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(frame)
	}

	unsubscribe, err := store.Subscribe("", func(any) { push() })
	if err != nil {
		return
	}
	defer unsubscribe()

	push()

	// Hold the connection open until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps store errors onto HTTP statuses: malformed paths and
// indices are the client's fault, read-only violations are forbidden.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, strata.ErrInvalidPath), errors.Is(err, strata.ErrInvalidIndex):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, strata.ErrReadOnly):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
