package handler

import (
	"errors"
	"sync"

	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/mode"
	"github.com/skitterhq/skitter/pkg/registry"
	"github.com/skitterhq/skitter/pkg/subscribe"
)

// ErrAlreadyConnected is returned when the same remote tries to connect
// twice to the same handler.
var ErrAlreadyConnected = errors.New("handler: already connected")

// ErrRejected is a generic policy rejection.
var ErrRejected = errors.New("handler: rejected")

// MasterWorkerPolicy is the master-side handler for worker connections
//: accepts each distinct worker once, rejects duplicates, and
// on remote death optionally shuts the runtime down.
type MasterWorkerPolicy struct {
	Registry *registry.Registry
	Tags     *registry.Tags
	// Notifier, if set, is told about every accepted/lost worker so late
	// joiners can be replicated to.
	Notifier *subscribe.Notifier
	// ShutdownWithWorkers terminates the runtime when a worker it accepted
	// goes down, via Shutdown.
	ShutdownWithWorkers bool
	Shutdown            func(exitCode int)

	mu       sync.Mutex
	accepted map[string]struct{}
}

// ExitWorkerLost is the exit code used when shutdown-with-workers fires.
const ExitWorkerLost = 3

// NewMasterWorkerPolicy returns a ready MasterWorkerPolicy.
func NewMasterWorkerPolicy(reg *registry.Registry, tags *registry.Tags, shutdownWithWorkers bool, shutdown func(int)) *MasterWorkerPolicy {
	return &MasterWorkerPolicy{
		Registry:            reg,
		Tags:                tags,
		ShutdownWithWorkers: shutdownWithWorkers,
		Shutdown:            shutdown,
		accepted:            make(map[string]struct{}),
	}
}

// Accept implements Policy.
func (p *MasterWorkerPolicy) Accept(remote string, remoteMode mode.Mode, tags []string) error {
	if remoteMode != mode.Worker {
		return ErrRejected
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accepted[remote]; ok {
		return ErrAlreadyConnected
	}
	p.accepted[remote] = struct{}{}
	p.Registry.Add(remote, mode.Worker)
	p.Tags.Add(remote, tags)
	log.WithComponent("handler.master").Info().Str("worker", remote).Msg("worker accepted")
	if p.Notifier != nil {
		p.Notifier.NotifyUp(remote, tags)
	}
	return nil
}

// Remove implements Policy.
func (p *MasterWorkerPolicy) Remove(remote string) {
	p.mu.Lock()
	delete(p.accepted, remote)
	p.mu.Unlock()
	p.Registry.Remove(remote)
	p.Tags.Remove(remote)
}

// RemoteDown implements Policy.
func (p *MasterWorkerPolicy) RemoteDown(remote string) {
	p.mu.Lock()
	_, was := p.accepted[remote]
	delete(p.accepted, remote)
	p.mu.Unlock()
	if !was {
		return
	}
	p.Registry.Remove(remote)
	p.Tags.Remove(remote)
	log.WithComponent("handler.master").Warn().Str("worker", remote).Msg("worker down")
	if p.Notifier != nil {
		p.Notifier.NotifyDown(remote)
	}
	if p.ShutdownWithWorkers && p.Shutdown != nil {
		p.Shutdown(ExitWorkerLost)
	}
}

// Accepted reports whether remote is currently accepted.
func (p *MasterWorkerPolicy) Accepted(remote string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.accepted[remote]
	return ok
}
