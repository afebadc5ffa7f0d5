// Package placement implements the two worker-creation backends: a
// single-node backend that always spawns locally, and a
// cluster backend that consults the registry/tags and places a worker
// on a random eligible remote node via the task executor.
package placement

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/strategy"
	"github.com/skitterhq/skitter/pkg/worker"
)

// Local places every worker on this single runtime.
type Local struct {
	Workers *worker.Registry
	seq     atomic.Int64

	// Send's interface only carries a tag, not the generated worker ID
	// CreateWorker returned, so Local must remember which ID it minted
	// for each (ref, component, tag) itself.
	mu  sync.Mutex
	ids map[worker.ID]string
}

// NewLocal returns a Creator/Sender pair bound to workers.
func NewLocal(workers *worker.Registry) *Local {
	return &Local{Workers: workers, ids: make(map[worker.ID]string)}
}

// CreateWorker implements strategy.Creator.
func (l *Local) CreateWorker(ctx strategy.Context, initial operation.Value, tag string, _ strategy.PlacementHint) (string, error) {
	id := fmt.Sprintf("w%d", l.seq.Add(1))
	if _, err := l.Workers.Create(ctx.Ref, ctx.ComponentIndex, id, ctx, ctx.Strategy, worker.InitialState{Value: initial}, tag); err != nil {
		return "", err
	}
	key := worker.ID{Ref: ctx.Ref, ComponentIndex: ctx.ComponentIndex, WorkerID: tag}
	l.mu.Lock()
	l.ids[key] = id
	l.mu.Unlock()
	return id, nil
}

// Send implements strategy.Sender for same-node delivery.
func (l *Local) Send(dst strategy.Context, message operation.Value, tag string) error {
	key := worker.ID{Ref: dst.Ref, ComponentIndex: dst.ComponentIndex, WorkerID: tag}
	l.mu.Lock()
	id, ok := l.ids[key]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("placement: no local worker pinned under tag %q for component %d", tag, dst.ComponentIndex)
	}
	sup, ok := l.Workers.Get(worker.ID{Ref: dst.Ref, ComponentIndex: dst.ComponentIndex, WorkerID: id})
	if !ok {
		return fmt.Errorf("placement: no local worker %s", id)
	}
	sup.Send(dst, message)
	return nil
}
