// Package registry holds the fast, read-optimised membership tables:
// which remotes are connected, in what mode, and
// which tags each worker carries. Only the handler that owns a mode may
// call the write methods (Add/Remove/RemoveAll); every other caller reads.
package registry

import (
	"sync"

	"github.com/skitterhq/skitter/pkg/metrics"
	"github.com/skitterhq/skitter/pkg/mode"
)

// Registry is the connected-remotes table.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]mode.Mode
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]mode.Mode)}
}

// Add records remote as connected in the given mode. Called only by the
// handler bound to that mode.
func (r *Registry) Add(remote string, m mode.Mode) {
	r.mu.Lock()
	r.entries[remote] = m
	r.mu.Unlock()
	r.updateMetrics()
}

// Remove drops remote from the table. Called only by its owning handler.
func (r *Registry) Remove(remote string) {
	r.mu.Lock()
	delete(r.entries, remote)
	r.mu.Unlock()
	r.updateMetrics()
}

// RemoveAll clears the table, used when a handler resets on shutdown.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	r.entries = make(map[string]mode.Mode)
	r.mu.Unlock()
	r.updateMetrics()
}

// All returns every connected remote name, in no particular order.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	return out
}

// Master returns the connected master, if any.
func (r *Registry) Master() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, m := range r.entries {
		if m == mode.Master {
			return name, true
		}
	}
	return "", false
}

// Workers returns every connected worker name.
func (r *Registry) Workers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name, m := range r.entries {
		if m == mode.Worker {
			out = append(out, name)
		}
	}
	return out
}

// Connected reports whether remote is currently in the table.
func (r *Registry) Connected(remote string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[remote]
	return ok
}

func (r *Registry) updateMetrics() {
	r.mu.RLock()
	counts := map[mode.Mode]int{}
	for _, m := range r.entries {
		counts[m]++
	}
	r.mu.RUnlock()
	for _, m := range []mode.Mode{mode.Master, mode.Worker, mode.Local} {
		metrics.RegistrySize.WithLabelValues(string(m)).Set(float64(counts[m]))
	}
}
