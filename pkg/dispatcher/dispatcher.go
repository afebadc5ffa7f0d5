// Package dispatcher routes an incoming connection request to the local
// handler bound to the remote's mode. It runs its own
// goroutine; binds and dispatches are serialised through a command
// channel so the bind table is only ever touched by that one goroutine.
package dispatcher

import (
	"context"
	"errors"

	"github.com/skitterhq/skitter/pkg/mode"
)

// ErrUnknownMode is returned when no handler, and no default handler, is
// bound for the remote's mode.
var ErrUnknownMode = errors.New("dispatcher: unknown mode")

// Handler is the contract a mode's connection manager must satisfy so the
// dispatcher (and the connect protocol) can drive it without depending on
// any particular handler implementation.
type Handler interface {
	// AcceptConnection is called when a remote of the bound mode wants to
	// connect. tags is only meaningful when remoteMode == mode.Worker.
	AcceptConnection(remote string, remoteMode mode.Mode, tags []string) error
	// RemoveConnection rolls back a prior accept (e.g. the reverse half of
	// a connect handshake failed).
	RemoveConnection(remote string)
	// RemoteDown reacts to a monitored remote dying.
	RemoteDown(remote string)
}

// state is private to the goroutine started by New; no other goroutine
// ever touches it directly, only through closures sent over cmds.
type state struct {
	handlers map[mode.Mode]Handler
	def      Handler
}

// Dispatcher is the per-runtime mode -> handler routing table.
type Dispatcher struct {
	cmds chan func(*state)
}

// New starts a Dispatcher.
func New() *Dispatcher {
	d := &Dispatcher{cmds: make(chan func(*state))}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	st := &state{handlers: make(map[mode.Mode]Handler)}
	for cmd := range d.cmds {
		cmd(st)
	}
}

// Bind registers h as the handler for mode m.
func (d *Dispatcher) Bind(m mode.Mode, h Handler) {
	done := make(chan struct{})
	d.cmds <- func(st *state) {
		st.handlers[m] = h
		close(done)
	}
	<-done
}

// DefaultBind registers h as the fallback handler for any unbound mode.
func (d *Dispatcher) DefaultBind(h Handler) {
	done := make(chan struct{})
	d.cmds <- func(st *state) {
		st.def = h
		close(done)
	}
	<-done
}

// Dispatch routes an accept request for remote (reporting remoteMode) to
// the bound handler, returning the handler that accepted it (for monitor
// registration / rollback) or ErrUnknownMode / a handler-specific error.
func (d *Dispatcher) Dispatch(ctx context.Context, remote string, remoteMode mode.Mode, tags []string) (Handler, error) {
	type result struct {
		h   Handler
		err error
	}
	reply := make(chan result, 1)
	cmd := func(st *state) {
		h, ok := st.handlers[remoteMode]
		if !ok {
			h = st.def
		}
		if h == nil {
			reply <- result{nil, ErrUnknownMode}
			return
		}
		if err := h.AcceptConnection(remote, remoteMode, tags); err != nil {
			reply <- result{nil, err}
			return
		}
		reply <- result{h, nil}
	}
	select {
	case d.cmds <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.h, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
