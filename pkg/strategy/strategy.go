// Package strategy defines the pluggable placement/execution hooks that
// are the only place distribution decisions are made: a
// strategy's deploy hook may create workers, its deliver hook picks a
// destination worker, and its process hook updates state and emits.
package strategy

import (
	"github.com/skitterhq/skitter/pkg/operation"
)

// Invocation is the causal tag travelling with an emitted value. It is
// either an opaque token correlating causally related
// messages, or one of the two reserved sentinels below.
type Invocation string

const (
	// External marks messages that entered from outside Skitter, e.g. a
	// line read by a PassiveSource.
	External Invocation = "external"
	// Deploy marks the invocation carried by a deploy-hook context; any
	// emit attempted under this invocation is a fatal definition error
	//.
	Deploy Invocation = "deploy"
)

// Ref identifies one installed deployment.
type Ref string

// ComponentIndex is a node's dense, per-deployment position assigned
// during the deploy pipeline.
type ComponentIndex int

// Context is the struct passed to every strategy hook, carrying the
// operation, strategy, deploy-time args, the strategy's own deployment
// data, the node's component index, its deployment ref, and the current
// invocation. Deliver overrides Invocation to carry the producer's
// token to the consumer.
type Context struct {
	Operation      *operation.Operation
	Strategy       Strategy
	Args           any
	DeploymentData any
	ComponentIndex ComponentIndex
	Ref            Ref
	Invocation     Invocation
}

// WithInvocation returns a copy of ctx carrying a different invocation,
// used by deliver to hand the producer's token to the consumer.
func (ctx Context) WithInvocation(inv Invocation) Context {
	ctx.Invocation = inv
	return ctx
}

// Sender is the worker-facing send path a deliver hook must end by
// calling: it enqueues message on the worker hosting dst.
type Sender interface {
	Send(dst Context, message operation.Value, tag string) error
}

// PlacementHint narrows where create_worker may place a new worker: an
// optional tag-set constraint and/or an explicit node name.
type PlacementHint struct {
	Tags []string
	Node string
}

// Creator is the worker-creation interface used by deploy hooks:
// create_worker(ctx, state_or_fn, tag, placement_hint) -> worker_id.
type Creator interface {
	CreateWorker(ctx Context, initial operation.Value, tag string, hint PlacementHint) (string, error)
}

// Strategy supplies the three hooks a deployment's strategy context
// dispatches to.
type Strategy interface {
	// Deploy returns the deployment data stored on ctx for every later
	// hook call on this node. May call Creator.CreateWorker.
	Deploy(ctx Context, creator Creator) (any, error)
	// Deliver moves a value arriving on ctx's node to a worker's send
	// path, picking a destination via the registry/tags when ctx spans
	// nodes.
	Deliver(ctx Context, sender Sender, value operation.Value, destPort int) error
	// Process runs a worker's message handler, returning the worker's
	// next state.
	Process(ctx Context, message operation.Value, state operation.Value, tag string) (operation.Value, error)
}
