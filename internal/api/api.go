// Package api serves the cache statistics over HTTP: JSON reports, flush
// triggers and a websocket stream of live reports.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"cachestats/internal/cache"
	"cachestats/internal/middleware"
	"cachestats/internal/statistics"
	"cachestats/internal/store"
)

// SnapshotLister reads persisted snapshots; *store.Store implements it.
type SnapshotLister interface {
	List(ctx context.Context) ([]*store.Record, error)
}

type Options struct {
	AdminToken       string
	StreamInterval   time.Duration
	StreamMaxClients int
	Snapshots        SnapshotLister
}

type API struct {
	registry       *statistics.Registry
	caches         map[string]*cache.InstrumentedCache
	adminToken     string
	snapshots      SnapshotLister
	streamInterval time.Duration
	streamLimiter  *middleware.ConcurrencyLimiter
}

func New(reg *statistics.Registry, caches []*cache.InstrumentedCache, opts Options) *API {
	if reg == nil {
		reg = statistics.Default()
	}
	byName := make(map[string]*cache.InstrumentedCache, len(caches))
	for _, c := range caches {
		if c != nil {
			byName[c.Name()] = c
		}
	}
	interval := opts.StreamInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxClients := opts.StreamMaxClients
	if maxClients <= 0 {
		maxClients = 16
	}
	return &API{
		registry:       reg,
		caches:         byName,
		adminToken:     opts.AdminToken,
		snapshots:      opts.Snapshots,
		streamInterval: interval,
		streamLimiter:  middleware.NewConcurrencyLimiter(maxClients, time.Second),
	}
}

// Register mounts every route on mux. Mutating routes sit behind the admin
// token; all routes are traced and measured.
func (a *API) Register(mux *http.ServeMux) {
	admin := middleware.AdminAuth(a.adminToken)
	route := func(pattern, label string, h http.Handler, extra ...func(http.Handler) http.Handler) {
		chain := append([]func(http.Handler) http.Handler{middleware.TraceMiddleware, middleware.LoggingMiddleware(label)}, extra...)
		mux.Handle(pattern, middleware.Chain(chain...)(h))
	}

	route("GET /health", "/health", http.HandlerFunc(a.HandleHealth))
	route("GET /api/caches", "/api/caches", http.HandlerFunc(a.HandleCaches))
	route("GET /api/caches/stream", "/api/caches/stream", http.HandlerFunc(a.HandleStream))
	route("GET /api/caches/{name}", "/api/caches/{name}", http.HandlerFunc(a.HandleCache))
	route("POST /api/caches/{name}/flush", "/api/caches/{name}/flush", http.HandlerFunc(a.HandleFlush), admin)
	route("GET /api/caches/{name}/entries/{key}", "/api/caches/{name}/entries/{key}", http.HandlerFunc(a.HandleGetEntry))
	route("PUT /api/caches/{name}/entries/{key}", "/api/caches/{name}/entries/{key}", http.HandlerFunc(a.HandlePutEntry), admin)
	route("DELETE /api/caches/{name}/entries/{key}", "/api/caches/{name}/entries/{key}", http.HandlerFunc(a.HandleDeleteEntry), admin)
	route("GET /api/snapshots", "/api/snapshots", http.HandlerFunc(a.HandleSnapshots))
}

// CacheNames returns the served cache names, sorted.
func (a *API) CacheNames() []string {
	names := make([]string, 0, len(a.caches))
	for name := range a.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
