// Package task implements the fan-out RPC executor: run a
// named procedure on one remote, on many remotes in parallel, or on every
// connected worker, collecting results without the caller reasoning
// about individual connections.
package task

import (
	"context"
	"sync"

	"github.com/skitterhq/skitter/pkg/metrics"
	"github.com/skitterhq/skitter/pkg/registry"
	"github.com/skitterhq/skitter/pkg/transport"
)

// Executor runs named procedures against remote runtimes over a shared
// connection pool.
type Executor struct {
	pool     *transport.Pool
	registry *registry.Registry
}

// New returns an Executor backed by pool, consulting reg for OnAllWorkers.
func New(pool *transport.Pool, reg *registry.Registry) *Executor {
	return &Executor{pool: pool, registry: reg}
}

// Result pairs a remote with the outcome of invoking a procedure on it.
type Result struct {
	Remote string
	Err    error
}

// On invokes procedure on remote with args, blocking for the result, which
// is decoded into out (ignored if nil).
func (e *Executor) On(ctx context.Context, remote, procedure string, args, out any) error {
	timer := metrics.NewTimer()
	client, err := e.pool.Get(remote)
	if err != nil {
		timer.ObserveDurationVec(metrics.TaskDuration, "dial_error")
		return err
	}
	err = client.Invoke(ctx, procedure, args, out)
	if err != nil {
		timer.ObserveDurationVec(metrics.TaskDuration, "error")
		return err
	}
	timer.ObserveDurationVec(metrics.TaskDuration, "ok")
	return nil
}

// OnMany invokes procedure on every remote in parallel, returning results
// in the same order as remotes.
func (e *Executor) OnMany(ctx context.Context, remotes []string, procedure string, args any, outs []any) []Result {
	results := make([]Result, len(remotes))
	var wg sync.WaitGroup
	for i, remote := range remotes {
		wg.Add(1)
		go func(i int, remote string) {
			defer wg.Done()
			var out any
			if outs != nil && i < len(outs) {
				out = outs[i]
			}
			err := e.On(ctx, remote, procedure, args, out)
			results[i] = Result{Remote: remote, Err: err}
		}(i, remote)
	}
	wg.Wait()
	return results
}

// OnAllWorkers invokes procedure on every worker currently in the
// registry, in parallel.
func (e *Executor) OnAllWorkers(ctx context.Context, procedure string, args any) []Result {
	workers := e.registry.Workers()
	return e.OnMany(ctx, workers, procedure, args, nil)
}
