package worker

import (
	"fmt"
	"sync"

	"github.com/skitterhq/skitter/pkg/strategy"
)

// Registry is the process-wide table of worker supervisors hosted on
// this runtime, keyed by their stable ID: {deployment, component_index,
// worker_id}.
type Registry struct {
	mu    sync.RWMutex
	byID  map[ID]*Supervisor
}

// NewRegistry returns an empty worker Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[ID]*Supervisor)}
}

// Create spawns and registers a new supervised worker under workerID as
// given; it fails if that ID is already registered.
func (r *Registry) Create(ref strategy.Ref, index strategy.ComponentIndex, workerID string, ctx strategy.Context, strat strategy.Strategy, initial InitialState, tag string) (*Supervisor, error) {
	id := ID{Ref: ref, ComponentIndex: index, WorkerID: workerID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return nil, fmt.Errorf("worker: %s already exists", id)
	}
	sup := Spawn(id, ctx, strat, initial, tag)
	r.byID[id] = sup
	return sup, nil
}

// Get returns the supervisor for id, if hosted here.
func (r *Registry) Get(id ID) (*Supervisor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sup, ok := r.byID[id]
	return sup, ok
}

// RemoveDeployment stops and evicts every worker belonging to ref, when
// its containing deployment is removed.
func (r *Registry) RemoveDeployment(ref strategy.Ref) {
	r.mu.Lock()
	var toStop []*Supervisor
	for id, sup := range r.byID {
		if id.Ref == ref {
			toStop = append(toStop, sup)
			delete(r.byID, id)
		}
	}
	r.mu.Unlock()
	for _, sup := range toStop {
		sup.Stop()
	}
}

// All returns every worker ID currently hosted here.
func (r *Registry) All() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}
