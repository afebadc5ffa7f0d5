package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/skitterhq/skitter/pkg/beacon"
	"github.com/skitterhq/skitter/pkg/dispatcher"
	"github.com/skitterhq/skitter/pkg/mode"
	"google.golang.org/grpc"
)

// Procedure is a named remote-callable function, registered by whichever
// package wants to expose work to the task executor. Args is
// the caller's JSON-encoded argument value; the procedure decodes it
// itself since argument shapes vary per procedure.
type Procedure func(ctx context.Context, args json.RawMessage) (any, error)

// Handler answers the gRPC Transport service locally: Beacon probes,
// dispatcher-routed accepts, heartbeats, and named procedure calls.
type Handler struct {
	Beacon     *beacon.Beacon
	Dispatcher *dispatcher.Dispatcher
	LocalName  string

	// OnAccepted, if set, is invoked after a successful Accept so the
	// caller can start a remote-down monitor, mirroring the connect
	// handshake's own accept/monitor symmetry.
	OnAccepted func(remote string, accepted dispatcher.Handler)

	mu         sync.RWMutex
	procedures map[string]Procedure
}

// NewHandler constructs a server Handler.
func NewHandler(b *beacon.Beacon, d *dispatcher.Dispatcher, localName string) *Handler {
	return &Handler{
		Beacon:     b,
		Dispatcher: d,
		LocalName:  localName,
		procedures: make(map[string]Procedure),
	}
}

// RegisterProcedure makes fn callable remotely under name.
func (h *Handler) RegisterProcedure(name string, fn Procedure) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.procedures[name] = fn
}

// Probe implements Server.
func (h *Handler) Probe(ctx context.Context, _ *ProbeRequest) (*ProbeReply, error) {
	id, err := h.Beacon.Probe(ctx)
	if err != nil {
		return nil, err
	}
	return &ProbeReply{Version: id.Version, Mode: string(id.Mode)}, nil
}

// Accept implements Server: routes the inbound connect request through
// the local dispatcher, then arms a monitor on the new remote via
// OnAccepted.
func (h *Handler) Accept(ctx context.Context, req *AcceptRequest) (*AcceptReply, error) {
	accepted, err := h.Dispatcher.Dispatch(ctx, req.Name, mode.Mode(req.Mode), req.Tags)
	if err != nil {
		return &AcceptReply{Error: err.Error()}, nil
	}
	if h.OnAccepted != nil {
		h.OnAccepted(req.Name, accepted)
	}
	return &AcceptReply{}, nil
}

// Heartbeat implements Server: a liveness no-op reply.
func (h *Handler) Heartbeat(_ context.Context, _ *HeartbeatRequest) (*HeartbeatReply, error) {
	return &HeartbeatReply{}, nil
}

// Invoke implements Server: looks up a registered procedure and runs it.
func (h *Handler) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeReply, error) {
	h.mu.RLock()
	fn, ok := h.procedures[req.Procedure]
	h.mu.RUnlock()
	if !ok {
		return &InvokeReply{Error: fmt.Sprintf("transport: unknown procedure %q", req.Procedure)}, nil
	}
	result, err := fn(ctx, req.Args)
	if err != nil {
		return &InvokeReply{Error: err.Error()}, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return &InvokeReply{Error: err.Error()}, nil
	}
	return &InvokeReply{Result: data}, nil
}

// NewServer builds a *grpc.Server serving impl, authenticated with cookie.
func NewServer(impl Server, cookie string) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(serverCookieInterceptor(cookie)))
	RegisterServer(s, impl)
	return s
}
