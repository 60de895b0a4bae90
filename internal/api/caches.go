package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cachestats/internal/cache"
	"cachestats/internal/middleware"
	"cachestats/internal/report"
	"cachestats/internal/statistics"
)

// FlushRequest is the body of POST /api/caches/{name}/flush.
type FlushRequest struct {
	Kind    string `json:"kind"`
	Key     string `json:"key"`
	Group   string `json:"group"`
	Pattern string `json:"pattern"`
	Scope   string `json:"scope"`
}

// EntryRequest is the body of PUT /api/caches/{name}/entries/{key}.
type EntryRequest struct {
	Value  string   `json:"value"`
	Groups []string `json:"groups"`
	Scope  string   `json:"scope"`
}

type entryResponse struct {
	Key    string   `json:"key"`
	Value  string   `json:"value"`
	Groups []string `json:"groups,omitempty"`
	Scope  string   `json:"scope,omitempty"`
}

const flushOrigin statistics.Origin = "api"

func (a *API) HandleCaches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, report.Build(r.Context(), a.registry))
}

func (a *API) HandleCache(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	cr, ok := report.Find(r.Context(), a.registry, name)
	if !ok {
		writeError(w, http.StatusNotFound, "cache not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, cr)
}

func (a *API) HandleFlush(w http.ResponseWriter, r *http.Request) {
	c, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var body FlushRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	req, err := toFlushRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.Flush(r.Context(), req); err != nil {
		middleware.LogWithTrace(r.Context()).Error("Flush failed", "cache", c.Name(), "kind", req.Kind, "error", err)
		if errors.Is(err, cache.ErrUnknownFlushKind) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.LogWithTrace(r.Context()).Info("Cache flushed", "cache", c.Name(), "kind", req.Kind)
	cr, _ := report.Find(r.Context(), a.registry, c.Name())
	writeJSON(w, http.StatusOK, cr)
}

func toFlushRequest(body FlushRequest) (cache.FlushRequest, error) {
	kind, ok := statistics.ParseFlushKind(strings.TrimSpace(body.Kind))
	if !ok {
		return cache.FlushRequest{}, errors.New("unknown flush kind: " + body.Kind)
	}
	req := cache.FlushRequest{Kind: kind, Origin: flushOrigin}
	switch kind {
	case statistics.FlushEntry:
		if body.Key == "" {
			return req, errors.New("key is required")
		}
		req.Key = body.Key
	case statistics.FlushGroup:
		if body.Group == "" {
			return req, errors.New("group is required")
		}
		req.Group = body.Group
	case statistics.FlushPattern:
		if body.Pattern == "" {
			return req, errors.New("pattern is required")
		}
		req.Pattern = body.Pattern
	case statistics.FlushScope:
		scope, ok := statistics.ParseScope(body.Scope)
		if !ok {
			return req, errors.New("unknown scope: " + body.Scope)
		}
		req.Scope = scope
	}
	return req, nil
}

func (a *API) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	c, ok := a.lookup(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	e, found := c.Get(r.Context(), key)
	if !found {
		writeError(w, http.StatusNotFound, "entry not found: "+key)
		return
	}
	resp := entryResponse{Key: key, Value: e.Value, Groups: e.Groups}
	if e.Scope != statistics.ScopeNone {
		resp.Scope = statistics.ScopeName(e.Scope)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) HandlePutEntry(w http.ResponseWriter, r *http.Request) {
	c, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var body EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	scope := statistics.ScopeNone
	if body.Scope != "" {
		s, ok := statistics.ParseScope(body.Scope)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown scope: "+body.Scope)
			return
		}
		scope = s
	}
	key := r.PathValue("key")
	if err := c.Put(r.Context(), key, cache.Entry{Value: body.Value, Groups: body.Groups, Scope: scope}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	c, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if err := c.Remove(r.Context(), r.PathValue("key")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	if a.snapshots == nil {
		writeError(w, http.StatusNotFound, "snapshot store not configured")
		return
	}
	recs, err := a.snapshots.List(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (a *API) lookup(w http.ResponseWriter, r *http.Request) (*cache.InstrumentedCache, bool) {
	name := r.PathValue("name")
	c, ok := a.caches[name]
	if !ok {
		writeError(w, http.StatusNotFound, "cache not found: "+name)
		return nil, false
	}
	return c, true
}
