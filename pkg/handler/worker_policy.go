package handler

import (
	"errors"
	"sync"

	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/mode"
	"github.com/skitterhq/skitter/pkg/registry"
)

// ErrHasMaster is returned when a worker already holding a master is
// asked to accept a second, distinct master.
var ErrHasMaster = errors.New("handler: already has a master")

// ExitMasterLost is the exit code used when shutdown-with-master fires.
const ExitMasterLost = 4

// WorkerMasterPolicy is the worker-side handler for the master connection
//: accepts exactly one master, rejects a second distinct one,
// and on master death optionally terminates the runtime (default true).
type WorkerMasterPolicy struct {
	Registry           *registry.Registry
	ShutdownWithMaster bool
	Shutdown           func()

	mu     sync.Mutex
	master string
}

// NewWorkerMasterPolicy returns a ready WorkerMasterPolicy. shutdownWithMaster
// defaults to true by convention
func NewWorkerMasterPolicy(reg *registry.Registry, shutdownWithMaster bool, shutdown func()) *WorkerMasterPolicy {
	return &WorkerMasterPolicy{
		Registry:           reg,
		ShutdownWithMaster: shutdownWithMaster,
		Shutdown:           shutdown,
	}
}

// Accept implements Policy.
func (p *WorkerMasterPolicy) Accept(remote string, remoteMode mode.Mode, _ []string) error {
	if remoteMode != mode.Master {
		return ErrRejected
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.master != "" {
		if p.master == remote {
			return ErrAlreadyConnected
		}
		return ErrHasMaster
	}
	p.master = remote
	p.Registry.Add(remote, mode.Master)
	log.WithComponent("handler.worker").Info().Str("master", remote).Msg("master accepted")
	return nil
}

// Remove implements Policy.
func (p *WorkerMasterPolicy) Remove(remote string) {
	p.mu.Lock()
	if p.master == remote {
		p.master = ""
	}
	p.mu.Unlock()
	p.Registry.Remove(remote)
}

// RemoteDown implements Policy.
func (p *WorkerMasterPolicy) RemoteDown(remote string) {
	p.mu.Lock()
	if p.master != remote {
		p.mu.Unlock()
		return
	}
	p.master = ""
	p.mu.Unlock()
	p.Registry.Remove(remote)
	log.WithComponent("handler.worker").Warn().Str("master", remote).Msg("master down")
	if p.ShutdownWithMaster && p.Shutdown != nil {
		p.Shutdown()
	}
}

// Master returns the currently accepted master, if any.
func (p *WorkerMasterPolicy) Master() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.master, p.master != ""
}
