// Package builtin provides the small set of strategies every Skitter
// runtime registers by default, the way a standard library ships a
// handful of ready-made placement policies alongside the strategy
// interface itself.
package builtin

import (
	"fmt"

	"github.com/skitterhq/skitter/pkg/component"
	"github.com/skitterhq/skitter/pkg/emit"
	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/strategy"
)

// pinnedTag is the single worker tag every Pinned component uses; there
// is exactly one worker per component, so no tag-based fan-out is needed.
const pinnedTag = "pinned"

// Name is the registry key this package registers Pinned under.
const Name = "pinned"

// Pinned is the simplest strategy: one worker per deployed component,
// created once at deploy time, receiving every message in arrival
// order. It assumes one callback per in-port, named identically to the
// port, a convention simple enough to need no extra deploy-time
// metadata. It has no placement opinion beyond "somewhere eligible" and
// is a reasonable default for operations with no distribution needs.
type Pinned struct {
	Store  *component.Store
	Sender strategy.Sender
}

// New returns a Pinned strategy that emits through store's link tables,
// routing every delivery through sender (the deployment's placement
// backend — Local or Cluster both implement strategy.Sender).
func New(store *component.Store, sender strategy.Sender) *Pinned {
	return &Pinned{Store: store, Sender: sender}
}

// Deploy implements strategy.Strategy: spawns the single pinned worker.
func (p *Pinned) Deploy(ctx strategy.Context, creator strategy.Creator) (any, error) {
	initial := ctx.Operation.InitialState()
	workerID, err := creator.CreateWorker(ctx, initial, pinnedTag, strategy.PlacementHint{})
	if err != nil {
		return nil, fmt.Errorf("pinned: creating worker for component %d: %w", ctx.ComponentIndex, err)
	}
	return workerID, nil
}

// Deliver implements strategy.Strategy: forwards the value to the one
// pinned worker, tagging it with the destination in-port index so
// Process can route it to the matching callback.
func (p *Pinned) Deliver(ctx strategy.Context, sender strategy.Sender, value operation.Value, destPort int) error {
	return sender.Send(ctx, taggedMessage{Port: destPort, Value: value}, pinnedTag)
}

// Process implements strategy.Strategy: looks up the callback bound to
// the message's destination port, runs it, and emits any values it
// produced before returning the next state.
func (p *Pinned) Process(ctx strategy.Context, message operation.Value, state operation.Value, tag string) (operation.Value, error) {
	msg, ok := message.(taggedMessage)
	if !ok {
		return state, fmt.Errorf("pinned: unexpected message type %T", message)
	}
	inPorts := ctx.Operation.InPorts()
	if msg.Port < 0 || msg.Port >= len(inPorts) {
		return state, fmt.Errorf("pinned: port index %d out of range", msg.Port)
	}
	callback := inPorts[msg.Port]
	result, err := ctx.Operation.Call(callback, state, ctx.Args, []operation.Value{msg.Value})
	if err != nil {
		return state, err
	}
	if len(result.Emit) > 0 {
		if err := emit.Emit(p.Store, p.Sender, ctx, result.Emit, nil); err != nil {
			return result.State, err
		}
	}
	return result.State, nil
}

// taggedMessage carries the destination in-port alongside the emitted
// value, since Pinned's single worker must route arriving messages to
// the right callback itself.
type taggedMessage struct {
	Port  int
	Value operation.Value
}
