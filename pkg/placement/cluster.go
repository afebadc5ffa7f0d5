package placement

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"github.com/skitterhq/skitter/pkg/component"
	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/registry"
	"github.com/skitterhq/skitter/pkg/strategy"
	"github.com/skitterhq/skitter/pkg/task"
	"github.com/skitterhq/skitter/pkg/transport"
	"github.com/skitterhq/skitter/pkg/worker"
)

const (
	// ProcedureCreate is the remote worker-spawn procedure name.
	ProcedureCreate = "worker.create"
	// ProcedureSend is the remote worker-send procedure name.
	ProcedureSend = "worker.send"
	// ProcedurePlacement replicates a worker's node assignment to every
	// other node, so any node's Send can find it, not just the one that
	// issued the create.
	ProcedurePlacement = "worker.placed"
)

// createRequest is the wire payload for ProcedureCreate. The destination
// node already holds ctx in its own component store (replicated by the
// deploy pipeline), so only the worker identity and initial state cross
// the wire.
type createRequest struct {
	Ref      strategy.Ref           `json:"ref"`
	Index    strategy.ComponentIndex `json:"index"`
	WorkerID string                 `json:"worker_id"`
	Tag      string                 `json:"tag"`
	Initial  json.RawMessage        `json:"initial,omitempty"`
}

type sendRequest struct {
	Ref        strategy.Ref            `json:"ref"`
	Index      strategy.ComponentIndex `json:"index"`
	WorkerID   string                  `json:"worker_id"`
	Message    json.RawMessage         `json:"message,omitempty"`
	Invocation strategy.Invocation     `json:"invocation"`
}

// placementRequest replicates one worker's node assignment to every node,
// so a Send issued anywhere in the cluster can resolve it, not just the
// node that ran the deploy hook that created the worker.
type placementRequest struct {
	Ref      strategy.Ref            `json:"ref"`
	Index    strategy.ComponentIndex `json:"index"`
	Tag      string                  `json:"tag"`
	WorkerID string                  `json:"worker_id"`
	Node     string                  `json:"node"`
}

// placement is what a node knows about one worker it may need to send
// to: the node hosting it, and the worker ID it was registered under
// there.
type placement struct {
	Node     string
	WorkerID string
}

// Cluster consults the registry/tags to pick a random eligible node and
// places a worker there via the task executor. One Cluster instance runs on every runtime
// in the cluster: it is both the caller (when its own strategy hooks
// run) and the remote handler (answering ProcedureCreate/ProcedureSend
// from other nodes).
type Cluster struct {
	Registry *registry.Registry
	Tags     *registry.Tags
	Tasks    *task.Executor
	Workers  *worker.Registry
	Store    *component.Store

	mu         sync.Mutex
	placements map[worker.ID]placement
}

// NewCluster returns a Cluster backend bound to the given shared services.
func NewCluster(reg *registry.Registry, tags *registry.Tags, tasks *task.Executor, workers *worker.Registry, store *component.Store) *Cluster {
	return &Cluster{
		Registry:   reg,
		Tags:       tags,
		Tasks:      tasks,
		Workers:    workers,
		Store:      store,
		placements: make(map[worker.ID]placement),
	}
}

// RegisterRPC exposes the worker-create and worker-send procedures on
// handler so remote nodes can place and message workers here.
func (c *Cluster) RegisterRPC(handler *transport.Handler) {
	handler.RegisterProcedure(ProcedureCreate, func(ctx context.Context, args json.RawMessage) (any, error) {
		var req createRequest
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, err
		}
		dctx, ok := c.Store.Context(req.Ref, req.Index)
		if !ok {
			return nil, fmt.Errorf("placement: no component %d for deployment %s", req.Index, req.Ref)
		}
		var initial operation.Value
		if len(req.Initial) > 0 {
			if err := json.Unmarshal(req.Initial, &initial); err != nil {
				return nil, err
			}
		}
		_, err := c.Workers.Create(req.Ref, req.Index, req.WorkerID, dctx, dctx.Strategy, worker.InitialState{Value: initial}, req.Tag)
		return nil, err
	})

	handler.RegisterProcedure(ProcedureSend, func(ctx context.Context, args json.RawMessage) (any, error) {
		var req sendRequest
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, err
		}
		dctx, ok := c.Store.Context(req.Ref, req.Index)
		if !ok {
			return nil, fmt.Errorf("placement: no component %d for deployment %s", req.Index, req.Ref)
		}
		dctx = dctx.WithInvocation(req.Invocation)
		id := worker.ID{Ref: req.Ref, ComponentIndex: req.Index, WorkerID: req.WorkerID}
		sup, ok := c.Workers.Get(id)
		if !ok {
			return nil, fmt.Errorf("placement: no worker %s", id)
		}
		var message operation.Value
		if len(req.Message) > 0 {
			if err := json.Unmarshal(req.Message, &message); err != nil {
				return nil, err
			}
		}
		sup.Send(dctx, message)
		return nil, nil
	})

	handler.RegisterProcedure(ProcedurePlacement, func(ctx context.Context, args json.RawMessage) (any, error) {
		var req placementRequest
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, err
		}
		id := worker.ID{Ref: req.Ref, ComponentIndex: req.Index, WorkerID: req.Tag}
		c.mu.Lock()
		c.placements[id] = placement{Node: req.Node, WorkerID: req.WorkerID}
		c.mu.Unlock()
		return nil, nil
	})
}

// CreateWorker implements strategy.Creator.
func (c *Cluster) CreateWorker(ctx strategy.Context, initial operation.Value, tag string, hint strategy.PlacementHint) (string, error) {
	node, err := c.pickNode(hint)
	if err != nil {
		return "", err
	}
	workerID := fmt.Sprintf("w-%s-%d-%s", ctx.Ref, ctx.ComponentIndex, tag)

	var initialJSON json.RawMessage
	if initial != nil {
		data, err := json.Marshal(initial)
		if err != nil {
			return "", err
		}
		initialJSON = data
	}

	req := createRequest{Ref: ctx.Ref, Index: ctx.ComponentIndex, WorkerID: workerID, Tag: tag, Initial: initialJSON}
	if err := c.Tasks.On(context.Background(), node, ProcedureCreate, req, nil); err != nil {
		return "", fmt.Errorf("placement: creating worker on %s: %w", node, err)
	}

	id := worker.ID{Ref: ctx.Ref, ComponentIndex: ctx.ComponentIndex, WorkerID: tag}
	c.mu.Lock()
	c.placements[id] = placement{Node: node, WorkerID: workerID}
	c.mu.Unlock()

	// Replicate the assignment to every node: only this node ran the
	// deploy hook, but a Send for this worker may be issued from any
	// node's strategy hooks.
	placeReq := placementRequest{Ref: ctx.Ref, Index: ctx.ComponentIndex, Tag: tag, WorkerID: workerID, Node: node}
	for _, r := range c.Tasks.OnAllWorkers(context.Background(), ProcedurePlacement, placeReq) {
		if r.Err != nil {
			log.WithComponent("placement").Error().Err(r.Err).Str("worker", r.Remote).Msg("placement replication failed")
		}
	}
	return workerID, nil
}

// Send implements strategy.Sender, routing to whichever node last
// created the destination worker.
func (c *Cluster) Send(dst strategy.Context, message operation.Value, tag string) error {
	id := worker.ID{Ref: dst.Ref, ComponentIndex: dst.ComponentIndex, WorkerID: tag}
	c.mu.Lock()
	p, ok := c.placements[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("placement: unknown placement for worker %s", id)
	}

	var messageJSON json.RawMessage
	if message != nil {
		data, err := json.Marshal(message)
		if err != nil {
			return err
		}
		messageJSON = data
	}
	req := sendRequest{Ref: dst.Ref, Index: dst.ComponentIndex, WorkerID: p.WorkerID, Message: messageJSON, Invocation: dst.Invocation}
	return c.Tasks.On(context.Background(), p.Node, ProcedureSend, req, nil)
}

func (c *Cluster) pickNode(hint strategy.PlacementHint) (string, error) {
	if hint.Node != "" {
		return hint.Node, nil
	}
	candidates := c.Registry.Workers()
	for _, tag := range hint.Tags {
		candidates = intersect(candidates, c.Tags.With(tag))
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("placement: no eligible worker for tags %v", hint.Tags)
	}
	return candidates[rand.Intn(len(candidates))], nil
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
