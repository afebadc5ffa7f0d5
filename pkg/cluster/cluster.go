// Package cluster drives the startup policies:
// a master connects to its configured worker set and gates on success;
// a worker connects to its configured master and stays alive on
// failure; both sides can be configured to shut down when the other is
// lost.
package cluster

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/skitterhq/skitter/pkg/beacon"
	"github.com/skitterhq/skitter/pkg/connect"
	"github.com/skitterhq/skitter/pkg/dispatcher"
	"github.com/skitterhq/skitter/pkg/handler"
	"github.com/skitterhq/skitter/pkg/health"
	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/mode"
	"github.com/skitterhq/skitter/pkg/registry"
	"github.com/skitterhq/skitter/pkg/subscribe"
	"github.com/skitterhq/skitter/pkg/transport"
)

// Runtime bundles the services wired together at startup: beacon,
// dispatcher (which holds the bound handlers), registry/tags, the
// subscription notifier, and the transport pool every connect attempt
// shares.
type Runtime struct {
	Beacon     *beacon.Beacon
	Dispatcher *dispatcher.Dispatcher
	Registry   *registry.Registry
	Tags       *registry.Tags
	Pool       *transport.Pool
	Notifier   *subscribe.Notifier
	LocalName  string
}

// connectDeps builds the connect.Deps this runtime presents to every
// handshake attempt.
func (r *Runtime) connectDeps() connect.Deps {
	return connect.Deps{
		Beacon:       r.Beacon,
		Dispatcher:   r.Dispatcher,
		Pool:         r.Pool,
		LocalName:    r.LocalName,
		HealthConfig: health.DefaultMonitorConfig(),
	}
}

// WorkerUpFunc replicates existing deployments to a newly joined worker.
// deploy.Pipeline.OnWorkerUp satisfies this.
type WorkerUpFunc func(ctx context.Context, remote string)

// StartMaster implements the master startup policy: connect
// to every configured worker in parallel, aggregate errors, and return a
// non-zero-worthy error if any failed. onWorkerUp, if set, is subscribed
// to worker_up events so late joiners get every already-running
// deployment replicated to them.
func StartMaster(ctx context.Context, r *Runtime, workers []string, shutdownWithWorkers bool, shutdown func(int), onWorkerUp WorkerUpFunc) error {
	policy := handler.NewMasterWorkerPolicy(r.Registry, r.Tags, shutdownWithWorkers, shutdown)
	policy.Notifier = r.Notifier
	r.Dispatcher.Bind(mode.Worker, handler.New(mode.Worker, policy))

	if onWorkerUp != nil && r.Notifier != nil {
		sub := r.Notifier.SubscribeUp()
		go func() {
			for ev := range sub {
				onWorkerUp(ctx, ev.Node)
			}
		}()
	}

	type outcome struct {
		worker string
		err    error
	}
	results := make([]outcome, len(workers))
	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func(i int, w string) {
			defer wg.Done()
			_, err := connect.Connect(ctx, r.connectDeps(), w, mode.Worker, nil)
			results[i] = outcome{worker: w, err: err}
		}(i, w)
	}
	wg.Wait()

	var failures []string
	for _, o := range results {
		if o.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", o.worker, o.err))
			log.WithComponent("cluster").Error().Err(o.err).Str("worker", o.worker).Msg("master startup: worker connect failed")
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("master startup: %d/%d workers failed to connect: %s", len(failures), len(workers), strings.Join(failures, "; "))
	}
	return nil
}

// StartWorker implements the worker startup policy: if a
// master is configured, connect to it; on failure, log and stay alive.
func StartWorker(ctx context.Context, r *Runtime, master string, shutdownWithMaster bool, shutdown func()) {
	policy := handler.NewWorkerMasterPolicy(r.Registry, shutdownWithMaster, shutdown)
	r.Dispatcher.Bind(mode.Master, handler.New(mode.Master, policy))

	if master == "" {
		return
	}
	if _, err := connect.Connect(ctx, r.connectDeps(), master, mode.Master, nil); err != nil {
		log.WithComponent("cluster").Error().Err(err).Str("master", master).Msg("worker startup: connect failed, staying alive")
	}
}

// ConnectWorker dials a single worker address outside the initial startup
// batch, for a master reacting to a worker list that grew after startup
// (the --worker-file watch). Connect's own handshake registers the
// worker in r.Registry/r.Tags and fires NotifyUp, so OnWorkerUp-style
// replication picks it up the same way a late joiner dialing in would.
func ConnectWorker(ctx context.Context, r *Runtime, addr string) error {
	_, err := connect.Connect(ctx, r.connectDeps(), addr, mode.Worker, nil)
	return err
}

// ExitOnMasterFailure is the Shutdown closure StartWorker expects when
// shutdown_with_master is enabled: it terminates the process with the
// dedicated exit code for master-lost-with-shutdown (handler.ExitMasterLost).
func ExitOnMasterFailure() {
	os.Exit(handler.ExitMasterLost)
}

// ExitOnWorkerFailure is the Shutdown closure StartMaster expects when
// shutdown_with_workers is enabled.
func ExitOnWorkerFailure(exitCode int) {
	os.Exit(exitCode)
}
