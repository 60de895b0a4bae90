package statistics

import (
	"runtime"
	"sort"
	"sync"
	"weak"
)

// Registry is a non-owning set of live trackers. Membership holds only a
// weak pointer, so a tracker nobody else references is collected and its
// entry dropped by a runtime cleanup.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint64]*registryEntry
}

type registryEntry struct {
	ref     weak.Pointer[Tracker]
	cleanup runtime.Cleanup
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[uint64]*registryEntry),
	}
}

// Register adds t. It reports false when t was already present.
func (r *Registry) Register(t *Tracker) bool {
	if t == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[t.id]; ok {
		return false
	}
	r.entries[t.id] = &registryEntry{
		ref:     weak.Make(t),
		cleanup: runtime.AddCleanup(t, r.collect, t.id),
	}
	return true
}

// Unregister removes t. It reports false when t was not present.
func (r *Registry) Unregister(t *Tracker) bool {
	if t == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[t.id]
	if !ok {
		return false
	}
	e.cleanup.Stop()
	delete(r.entries, t.id)
	return true
}

// collect runs after a registered tracker became unreachable.
func (r *Registry) collect(id uint64) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *Registry) Contains(t *Tracker) bool {
	if t == nil {
		return false
	}
	r.mu.RLock()
	e, ok := r.entries[t.id]
	r.mu.RUnlock()
	return ok && e.ref.Value() != nil
}

// Len counts entries, including any whose tracker is awaiting cleanup.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SnapshotAll returns the live trackers in registration order. The slice
// is the caller's; concurrent Register/Unregister calls may or may not be
// reflected in it.
func (r *Registry) SnapshotAll() []*Tracker {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.entries))
	refs := make(map[uint64]weak.Pointer[Tracker], len(r.entries))
	for id, e := range r.entries {
		ids = append(ids, id)
		refs[id] = e.ref
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Tracker, 0, len(ids))
	for _, id := range ids {
		if t := refs[id].Value(); t != nil {
			out = append(out, t)
		}
	}
	return out
}
