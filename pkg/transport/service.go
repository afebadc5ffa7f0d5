package transport

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the gRPC service path every node answers on.
const serviceName = "skitter.transport.Transport"

// Server is the contract the gRPC service dispatches to. Server.go's
// Handler implements it.
type Server interface {
	Probe(ctx context.Context, req *ProbeRequest) (*ProbeReply, error)
	Accept(ctx context.Context, req *AcceptRequest) (*AcceptReply, error)
	Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatReply, error)
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeReply, error)
}

func decodeRequest[T any](dec func(any) error) (*T, error) {
	req := new(T)
	if err := dec(req); err != nil {
		return nil, err
	}
	return req, nil
}

func probeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeRequest[ProbeRequest](dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Probe(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Probe"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Probe(ctx, req.(*ProbeRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func acceptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeRequest[AcceptRequest](dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Accept(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Accept"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Accept(ctx, req.(*AcceptRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func heartbeatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeRequest[HeartbeatRequest](dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Heartbeat(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Heartbeat"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req, err := decodeRequest[InvokeRequest](dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Invoke(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Invoke"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Invoke(ctx, req.(*InvokeRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc wires Server into grpc.Server without protoc-generated
// stubs: every message is a plain struct decoded via the JSON codec.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Probe", Handler: probeHandler},
		{MethodName: "Accept", Handler: acceptHandler},
		{MethodName: "Heartbeat", Handler: heartbeatHandler},
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "skitter/transport.proto",
}

// RegisterServer attaches impl to s under the Transport service.
func RegisterServer(s *grpc.Server, impl Server) {
	s.RegisterService(&serviceDesc, impl)
}
