package worker

import (
	"sync"
	"sync/atomic"

	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/metrics"
	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/strategy"
)

// Supervisor owns one worker ID's lifecycle: it restarts a crashed
// Instance with fresh initial state without affecting peer workers
// on failure, the way a reconciler replaces a
// failed container without touching the rest of the fleet.
type Supervisor struct {
	id      ID
	ctx     strategy.Context
	strat   strategy.Strategy
	initial InitialState
	tag     string

	mu       sync.RWMutex
	current  *Instance
	stopped  atomic.Bool
	stopOnce sync.Once
	quit     chan struct{}
}

// Spawn starts a new supervised worker instance and returns its
// Supervisor handle.
func Spawn(id ID, ctx strategy.Context, strat strategy.Strategy, initial InitialState, tag string) *Supervisor {
	s := &Supervisor{
		id:      id,
		ctx:     ctx,
		strat:   strat,
		initial: initial,
		tag:     tag,
		quit:    make(chan struct{}),
	}
	s.spawnInstance(nil)
	metrics.WorkersActive.Inc()
	return s
}

func (s *Supervisor) spawnInstance(mailbox chan any) {
	inst := newInstance(s.id, s.ctx, s.strat, s.initial, s.tag)
	if mailbox != nil {
		// a restarted instance keeps its predecessor's mailbox so messages
		// queued behind the one that crashed are still processed
		inst.events = mailbox
	}
	s.mu.Lock()
	s.current = inst
	s.mu.Unlock()
	inst.start()
	go s.watch(inst)
}

func (s *Supervisor) watch(inst *Instance) {
	select {
	case r := <-inst.crash:
		if r == nil {
			return // clean stop, not a crash
		}
		if s.stopped.Load() {
			return
		}
		log.WithComponent("worker.supervisor").Warn().
			Str("worker", s.id.String()).
			Interface("panic", r).
			Msg("restarting worker with fresh state")
		metrics.WorkerRestarts.Inc()
		s.spawnInstance(inst.events)
	case <-s.quit:
	}
}

// ID returns the worker's stable address.
func (s *Supervisor) ID() ID { return s.id }

func (s *Supervisor) instance() *Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Send forwards to the live instance's mailbox.
func (s *Supervisor) Send(ctx strategy.Context, message operation.Value) {
	s.instance().Send(ctx, message)
}

// External forwards an externally-originated message.
func (s *Supervisor) External(message operation.Value) {
	s.instance().External(message)
}

// RemoteDown forwards a remote-down notification.
func (s *Supervisor) RemoteDown(remote string) {
	s.instance().RemoteDown(remote)
}

// Stop tears the worker down permanently; a subsequent crash will not
// trigger a restart.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.quit)
		s.instance().stop()
		metrics.WorkersActive.Dec()
	})
}
