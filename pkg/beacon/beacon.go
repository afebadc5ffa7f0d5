// Package beacon answers the question "is this node a Skitter runtime, and
// in what mode?". It never blocks on external state: probing a
// Beacon only ever reads the two values fixed at startup.
package beacon

import (
	"context"

	"github.com/skitterhq/skitter/pkg/mode"
)

// Identity is what a Beacon reports about its runtime.
type Identity struct {
	Version string
	Mode    mode.Mode
}

// Beacon is the per-runtime identity probe service. It runs its own
// goroutine so that Probe always observes a consistent snapshot even
// while under concurrent load from many simultaneous connect attempts.
type Beacon struct {
	version string
	mode    mode.Mode
	probes  chan chan Identity
}

// New starts a Beacon reporting version and mode. Both are fixed for the
// lifetime of the runtime.
func New(version string, m mode.Mode) *Beacon {
	b := &Beacon{
		version: version,
		mode:    m,
		probes:  make(chan chan Identity),
	}
	go b.loop()
	return b
}

func (b *Beacon) loop() {
	id := Identity{Version: b.version, Mode: b.mode}
	for reply := range b.probes {
		reply <- id
	}
}

// Probe returns this runtime's identity. It blocks only long enough to
// hand off to the Beacon's own goroutine, and respects ctx cancellation.
func (b *Beacon) Probe(ctx context.Context) (Identity, error) {
	reply := make(chan Identity, 1)
	select {
	case b.probes <- reply:
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	}
	select {
	case id := <-reply:
		return id, nil
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	}
}

// Mode returns the local mode. Immutable after New, safe without
// synchronization.
func (b *Beacon) Mode() mode.Mode { return b.mode }

// Version returns the local version string. Immutable after New.
func (b *Beacon) Version() string { return b.version }
