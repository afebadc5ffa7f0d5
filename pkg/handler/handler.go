// Package handler implements the per-mode connection manager: a small
// state machine deciding whether to accept a remote,
// tracking accepted remotes, and reacting to their death. Handler is a
// generic driver; Policy supplies the master-side and worker-side
// acceptance rules.
package handler

import (
	"github.com/skitterhq/skitter/pkg/mode"
)

// Policy is the per-mode accept/remove/remote-down decision logic. Accept
// mutates the policy's own private state and returns an error the caller
// should surface to the remote initiating the connection.
type Policy interface {
	Accept(remote string, remoteMode mode.Mode, tags []string) error
	Remove(remote string)
	RemoteDown(remote string)
}

// Handler drives a Policy from its own goroutine, serialising every
// accept/remove/remote-down call: each is queued as a command on the
// handler's channel and run by its goroutine one at a time.
type Handler struct {
	mode   mode.Mode
	policy Policy
	cmds   chan func()
}

// New starts a Handler for m backed by policy.
func New(m mode.Mode, policy Policy) *Handler {
	h := &Handler{mode: m, policy: policy, cmds: make(chan func())}
	go h.loop()
	return h
}

func (h *Handler) loop() {
	for cmd := range h.cmds {
		cmd()
	}
}

// AcceptConnection implements dispatcher.Handler.
func (h *Handler) AcceptConnection(remote string, remoteMode mode.Mode, tags []string) error {
	reply := make(chan error, 1)
	h.cmds <- func() { reply <- h.policy.Accept(remote, remoteMode, tags) }
	return <-reply
}

// RemoveConnection implements dispatcher.Handler.
func (h *Handler) RemoveConnection(remote string) {
	done := make(chan struct{})
	h.cmds <- func() { h.policy.Remove(remote); close(done) }
	<-done
}

// RemoteDown implements dispatcher.Handler.
func (h *Handler) RemoteDown(remote string) {
	done := make(chan struct{})
	h.cmds <- func() { h.policy.RemoteDown(remote); close(done) }
	<-done
}
