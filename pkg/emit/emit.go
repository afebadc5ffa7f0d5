// Package emit implements a callback's act of publishing values along
// its out-ports: look up the link table, iterate each
// port's values in order, and hand each one to its destinations'
// strategy deliver hook.
package emit

import (
	"fmt"

	"github.com/skitterhq/skitter/pkg/component"
	"github.com/skitterhq/skitter/pkg/metrics"
	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/strategy"
)

// InvocationFunc produces a fresh invocation for each value emitted,
// used when the caller passes a zero-arity producer instead of reusing
// ctx's own invocation.
type InvocationFunc func() strategy.Invocation

// Emit publishes emitMap's values along ctx's link table. invocationFn,
// if non-nil, is called once per emitted value to mint its invocation;
// otherwise every value reuses ctx.Invocation.
//
// Emitting under the Deploy sentinel invocation is a fatal definition
// error: the context's invocation is exactly that sentinel
// for this one check.
func Emit(store *component.Store, sender strategy.Sender, ctx strategy.Context, emitMap operation.EmitMap, invocationFn InvocationFunc) error {
	if ctx.Invocation == strategy.Deploy {
		panic(fmt.Sprintf("emit: operation %q emitted from inside its deploy hook (component %d, ref %s)", ctx.Operation.Name(), ctx.ComponentIndex, ctx.Ref))
	}

	links, ok := store.Links(ctx.Ref, ctx.ComponentIndex)
	if !ok {
		return nil
	}

	for port, values := range emitMap {
		destinations, ok := links[port]
		if !ok || len(destinations) == 0 {
			continue
		}
		for _, value := range values {
			metrics.EmitTotal.Inc()
			invocation := ctx.Invocation
			if invocationFn != nil {
				invocation = invocationFn()
			}
			for _, dst := range destinations {
				dstCtx := dst.Context.WithInvocation(invocation)
				if err := dstCtx.Strategy.Deliver(dstCtx, sender, value, dst.Port); err != nil {
					return fmt.Errorf("emit: delivering on port %q to component %d: %w", port, dstCtx.ComponentIndex, err)
				}
				metrics.DeliverTotal.Inc()
			}
		}
	}
	return nil
}
