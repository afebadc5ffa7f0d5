package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const cookieMetadataKey = "skitter-cookie"

// serverCookieInterceptor rejects any call not carrying the cluster's
// shared cookie: every pair of nodes must be configured with the same
// cookie to authenticate transport calls to one another.
func serverCookieInterceptor(cookie string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok || len(md.Get(cookieMetadataKey)) != 1 || md.Get(cookieMetadataKey)[0] != cookie {
			return nil, status.Error(codes.Unauthenticated, "skitter: bad cluster cookie")
		}
		return handler(ctx, req)
	}
}

// clientCookieInterceptor attaches the shared cookie to every outgoing call.
func clientCookieInterceptor(cookie string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, cookieMetadataKey, cookie)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
