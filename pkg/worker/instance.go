// Package worker hosts one instance of an operation: it
// receives send/external/remote-down events over a private mailbox,
// calls the strategy's process hook, and stores the resulting state in
// a cell only its own goroutine ever touches.
package worker

import (
	"fmt"

	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/strategy"
)

// ID addresses a worker within its deployment: {deployment, component
// index, worker_id}.
type ID struct {
	Ref            strategy.Ref
	ComponentIndex strategy.ComponentIndex
	WorkerID       string
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%d/%s", id.Ref, id.ComponentIndex, id.WorkerID)
}

// InitialState is either a concrete value or a zero-arity producer
// evaluated lazily on the worker's first message.
type InitialState struct {
	Value   operation.Value
	Lazy    func() operation.Value
}

func (s InitialState) resolve() operation.Value {
	if s.Lazy != nil {
		return s.Lazy()
	}
	return s.Value
}

type sendEvent struct {
	ctx     strategy.Context
	message operation.Value
}

type externalEvent struct {
	message operation.Value
}

type remoteDownEvent struct {
	remote string
}

// Instance is one running operation instance. It owns exactly one
// goroutine (loop); every field below is read only from that goroutine.
type Instance struct {
	id      ID
	ctx     strategy.Context
	tag     string
	initial InitialState
	strat   strategy.Strategy

	state    operation.Value
	resolved bool

	events chan any
	done   chan struct{}
	crash  chan any // sends the recover() value, if any, when loop exits on panic
}

// newInstance constructs an Instance ready to be started by a Supervisor.
func newInstance(id ID, ctx strategy.Context, strat strategy.Strategy, initial InitialState, tag string) *Instance {
	return &Instance{
		id:      id,
		ctx:     ctx,
		tag:     tag,
		initial: initial,
		strat:   strat,
		events:  make(chan any, 64),
		done:    make(chan struct{}),
		crash:   make(chan any, 1),
	}
}

func (w *Instance) start() {
	go w.loop()
}

func (w *Instance) loop() {
	logger := log.WithComponent("worker").With().Str("worker", w.id.String()).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("worker crashed")
			w.crash <- r
		} else {
			w.crash <- nil
		}
		close(w.done)
	}()

	for ev := range w.events {
		w.ensureResolved()
		switch e := ev.(type) {
		case sendEvent:
			next, err := w.strat.Process(e.ctx, e.message, w.state, w.tag)
			if err != nil {
				panic(err)
			}
			w.state = next
		case externalEvent:
			extCtx := w.ctx.WithInvocation(strategy.External)
			next, err := w.strat.Process(extCtx, e.message, w.state, w.tag)
			if err != nil {
				panic(err)
			}
			w.state = next
		case remoteDownEvent:
			// remote-down events are dropped: Process is not called and
			// the strategy is not told which remote went down.
			_ = e
		case stopEvent:
			return
		}
	}
}

func (w *Instance) ensureResolved() {
	if w.resolved {
		return
	}
	w.state = w.initial.resolve()
	w.resolved = true
}

type stopEvent struct{}

// Send delivers a typed message produced via a strategy's deliver hook
// It enqueues onto the mailbox and returns
// immediately; backpressure only occurs if the mailbox is full.
func (w *Instance) Send(ctx strategy.Context, message operation.Value) {
	w.events <- sendEvent{ctx: ctx, message: message}
}

// External delivers a message that did not arrive through the normal
// send path, tagging it with the
// reserved External invocation.
func (w *Instance) External(message operation.Value) {
	w.events <- externalEvent{message: message}
}

// RemoteDown notifies the worker that a monitored remote died.
func (w *Instance) RemoteDown(remote string) {
	w.events <- remoteDownEvent{remote: remote}
}

func (w *Instance) stop() {
	w.events <- stopEvent{}
	<-w.done
}
