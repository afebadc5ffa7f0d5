// Package deploy implements the deploy pipeline: flatten a
// workflow, allocate dense component indices, run each node's strategy
// deploy hook and store its context, resolve link tables into the local
// component store, replicate the result to every connected worker, and
// log deployment-ready. No ready notification is sent to workers.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/skitterhq/skitter/pkg/component"
	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/metrics"
	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/registry"
	"github.com/skitterhq/skitter/pkg/strategy"
	"github.com/skitterhq/skitter/pkg/subscribe"
	"github.com/skitterhq/skitter/pkg/task"
	"github.com/skitterhq/skitter/pkg/transport"
	"github.com/skitterhq/skitter/pkg/workflow"
)

// ProcedureInstall is the name under which Pipeline registers its
// worker-side apply handler with transport.Handler.
const ProcedureInstall = "deploy.install"

// NodeMeta is the wire-safe description of one flattened node: enough
// for a worker to reconstruct a strategy.Context locally against its own
// operation/strategy registries, plus the deploy hook's opaque result.
type NodeMeta struct {
	Index          strategy.ComponentIndex `json:"index"`
	Name           string                  `json:"name"`
	Operation      string                  `json:"operation"`
	Strategy       string                  `json:"strategy"`
	Args           json.RawMessage         `json:"args,omitempty"`
	DeploymentData json.RawMessage         `json:"deployment_data,omitempty"`
}

// LinkEntry is one resolved edge between component indices, keyed by
// port name on each side (resolved to a port index locally using the
// destination operation's port list).
type LinkEntry struct {
	SrcIndex strategy.ComponentIndex `json:"src_index"`
	SrcPort  string                  `json:"src_port"`
	DstIndex strategy.ComponentIndex `json:"dst_index"`
	DstPort  string                  `json:"dst_port"`
}

// Install is the full wire payload replicated to every worker: a
// deployment ref plus its flattened node metadata and link entries.
type Install struct {
	Ref   strategy.Ref `json:"ref"`
	Nodes []NodeMeta   `json:"nodes"`
	Links []LinkEntry  `json:"links"`
}

// Registries is the read-only lookup this runtime uses to turn node
// metadata back into live Operation/Strategy values. Every runtime in a
// cluster registers the same operation/strategy set under the same
// names, the way every node in the cluster links the same packages.
type Registries struct {
	Operations map[string]*operation.Operation
	Strategies map[string]strategy.Strategy
}

// Pipeline runs the deploy pipeline and answers the replication RPC it
// sends to workers.
type Pipeline struct {
	Registries
	Store     *component.Store
	Cluster   *registry.Registry
	Tasks     *task.Executor
	Notifier  *subscribe.Notifier
	LocalName string

	mu       sync.Mutex
	installs map[strategy.Ref]Install
}

// New constructs a Pipeline over the given shared services.
func New(regs Registries, store *component.Store, cluster *registry.Registry, tasks *task.Executor, notifier *subscribe.Notifier, localName string) *Pipeline {
	return &Pipeline{
		Registries: regs,
		Store:      store,
		Cluster:    cluster,
		Tasks:      tasks,
		Notifier:   notifier,
		LocalName:  localName,
		installs:   make(map[strategy.Ref]Install),
	}
}

// RegisterRPC exposes the worker-side install procedure on handler, so a
// master's replication calls reach this runtime's component store.
func (p *Pipeline) RegisterRPC(handler *transport.Handler) {
	handler.RegisterProcedure(ProcedureInstall, func(ctx context.Context, args json.RawMessage) (any, error) {
		var install Install
		if err := json.Unmarshal(args, &install); err != nil {
			return nil, err
		}
		return nil, p.apply(install)
	})
}

// Deploy runs the full pipeline for wf and returns the new deployment's
// reference.
func (p *Pipeline) Deploy(ctx context.Context, wf *workflow.Workflow, creator strategy.Creator) (strategy.Ref, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DeployDuration)

	flat, err := workflow.Flatten(wf, p.Operations)
	if err != nil {
		return "", fmt.Errorf("deploy: %w", err)
	}

	ref := strategy.Ref(uuid.NewString())
	indices, order := assignIndices(flat)

	nodes := make([]NodeMeta, 0, len(order))
	for _, name := range order {
		n := flat.Nodes[name]
		op, ok := p.Operations[n.Operation]
		if !ok {
			return "", fmt.Errorf("deploy: unknown operation %q for node %q", n.Operation, name)
		}
		strat, ok := p.Strategies[op.Strategy()]
		if !ok {
			return "", fmt.Errorf("deploy: unknown strategy %q for operation %q", op.Strategy(), n.Operation)
		}
		args, err := json.Marshal(n.Args)
		if err != nil {
			return "", fmt.Errorf("deploy: marshaling args for node %q: %w", name, err)
		}

		dctx := strategy.Context{
			Operation:      op,
			Strategy:       strat,
			Args:           n.Args,
			ComponentIndex: indices[name],
			Ref:            ref,
			Invocation:     strategy.Deploy,
		}
		data, err := strat.Deploy(dctx, creator)
		if err != nil {
			return "", fmt.Errorf("deploy: node %q deploy hook failed: %w", name, err)
		}
		dctx.DeploymentData = data
		if err := p.Store.PutContext(ref, indices[name], dctx); err != nil {
			return "", err
		}

		dataJSON, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("deploy: marshaling deployment data for node %q: %w", name, err)
		}
		nodes = append(nodes, NodeMeta{
			Index: indices[name], Name: name,
			Operation: n.Operation, Strategy: op.Strategy(),
			Args: args, DeploymentData: dataJSON,
		})
	}

	links, err := resolveLinks(flat, indices)
	if err != nil {
		return "", err
	}
	if err := p.installLocalLinks(ref, indices, links); err != nil {
		return "", err
	}

	install := Install{Ref: ref, Nodes: nodes, Links: links}
	p.mu.Lock()
	p.installs[ref] = install
	p.mu.Unlock()

	logger := log.WithDeployment(string(ref))
	for _, r := range p.Tasks.OnAllWorkers(ctx, ProcedureInstall, install) {
		if r.Err != nil {
			logger.Error().Err(r.Err).Str("worker", r.Remote).Msg("deployment replication failed")
		}
	}

	metrics.DeploymentsActive.Inc()
	logger.Info().Int("nodes", len(nodes)).Msg("deployment ready")
	return ref, nil
}

// OnWorkerUp replicates every currently installed deployment to a
// newly-joined worker, logging and continuing past any failure so the
// deployment stays live on existing workers.
func (p *Pipeline) OnWorkerUp(ctx context.Context, remote string) {
	p.mu.Lock()
	installs := make([]Install, 0, len(p.installs))
	for _, in := range p.installs {
		installs = append(installs, in)
	}
	p.mu.Unlock()

	logger := log.WithComponent("deploy").With().Str("worker", remote).Logger()
	for _, in := range installs {
		if err := p.Tasks.On(ctx, remote, ProcedureInstall, in, nil); err != nil {
			logger.Error().Err(err).Str("deployment", string(in.Ref)).Msg("late-join replication failed; worker excluded from deployment")
		}
	}
}

// Remove destroys a deployment's local component-store entries and
// replication bookkeeping. It does not stop the deployment's workers and
// does not reach other runtimes.
func (p *Pipeline) Remove(ref strategy.Ref) {
	p.Store.Remove(ref)
	p.mu.Lock()
	delete(p.installs, ref)
	p.mu.Unlock()
	metrics.DeploymentsActive.Dec()
}

func (p *Pipeline) apply(install Install) error {
	indices := make(map[string]strategy.ComponentIndex, len(install.Nodes))
	for _, n := range install.Nodes {
		op, ok := p.Operations[n.Operation]
		if !ok {
			return fmt.Errorf("deploy: unknown operation %q", n.Operation)
		}
		strat, ok := p.Strategies[n.Strategy]
		if !ok {
			return fmt.Errorf("deploy: unknown strategy %q", n.Strategy)
		}
		var args any
		if len(n.Args) > 0 {
			if err := json.Unmarshal(n.Args, &args); err != nil {
				return err
			}
		}
		var data any
		if len(n.DeploymentData) > 0 {
			if err := json.Unmarshal(n.DeploymentData, &data); err != nil {
				return err
			}
		}
		dctx := strategy.Context{
			Operation: op, Strategy: strat, Args: args,
			DeploymentData: data, ComponentIndex: n.Index, Ref: install.Ref,
			Invocation: strategy.Deploy,
		}
		if err := p.Store.PutContext(install.Ref, n.Index, dctx); err != nil {
			return err
		}
		indices[n.Name] = n.Index
	}

	byIndex := make(map[strategy.ComponentIndex]component.LinkTable)
	for _, l := range install.Links {
		dstCtx, ok := p.Store.Context(install.Ref, l.DstIndex)
		if !ok {
			return fmt.Errorf("deploy: link references unknown component index %d", l.DstIndex)
		}
		dstPortIdx, ok := dstCtx.Operation.InPortIndex(l.DstPort)
		if !ok {
			return fmt.Errorf("deploy: unknown in-port %q on operation %q", l.DstPort, dstCtx.Operation.Name())
		}
		table := byIndex[l.SrcIndex]
		if table == nil {
			table = make(component.LinkTable)
		}
		table[l.SrcPort] = append(table[l.SrcPort], component.Destination{Context: dstCtx, Port: dstPortIdx})
		byIndex[l.SrcIndex] = table
	}
	for index, table := range byIndex {
		if err := p.Store.PutLinks(install.Ref, index, table); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) installLocalLinks(ref strategy.Ref, indices map[string]strategy.ComponentIndex, links []LinkEntry) error {
	byIndex := make(map[strategy.ComponentIndex]component.LinkTable)
	for _, l := range links {
		dstCtx, ok := p.Store.Context(ref, l.DstIndex)
		if !ok {
			return fmt.Errorf("deploy: link references unknown component index %d", l.DstIndex)
		}
		dstPortIdx, ok := dstCtx.Operation.InPortIndex(l.DstPort)
		if !ok {
			return fmt.Errorf("deploy: unknown in-port %q on operation %q", l.DstPort, dstCtx.Operation.Name())
		}
		table := byIndex[l.SrcIndex]
		if table == nil {
			table = make(component.LinkTable)
		}
		table[l.SrcPort] = append(table[l.SrcPort], component.Destination{Context: dstCtx, Port: dstPortIdx})
		byIndex[l.SrcIndex] = table
	}
	for _, idx := range indices {
		if err := p.Store.PutLinks(ref, idx, byIndex[idx]); err != nil {
			return err
		}
	}
	return nil
}

func assignIndices(flat *workflow.Workflow) (map[string]strategy.ComponentIndex, []string) {
	order := make([]string, 0, len(flat.Nodes))
	for name := range flat.Nodes {
		order = append(order, name)
	}
	// deterministic order keeps component indices stable across
	// identical deploys, which matters for tests and logs.
	sortStrings(order)

	indices := make(map[string]strategy.ComponentIndex, len(order))
	for i, name := range order {
		indices[name] = strategy.ComponentIndex(i)
	}
	return indices, order
}

func resolveLinks(flat *workflow.Workflow, indices map[string]strategy.ComponentIndex) ([]LinkEntry, error) {
	links := make([]LinkEntry, 0, len(flat.Links))
	for _, l := range flat.Links {
		srcIdx, ok := indices[l.SrcNode]
		if !ok {
			return nil, fmt.Errorf("deploy: link source node %q not found after flattening", l.SrcNode)
		}
		dstIdx, ok := indices[l.DstNode]
		if !ok {
			return nil, fmt.Errorf("deploy: link destination node %q not found after flattening", l.DstNode)
		}
		links = append(links, LinkEntry{SrcIndex: srcIdx, SrcPort: l.SrcPort, DstIndex: dstIdx, DstPort: l.DstPort})
	}
	return links, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
