package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestServerCookieInterceptorRejectsMissingCookie(t *testing.T) {
	interceptor := serverCookieInterceptor("secret")
	handlerCalled := false
	handler := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		return nil, nil
	}

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	assert.Error(t, err)
	assert.False(t, handlerCalled)
}

func TestServerCookieInterceptorRejectsWrongCookie(t *testing.T) {
	interceptor := serverCookieInterceptor("secret")
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(cookieMetadataKey, "wrong"))
	handler := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	assert.Error(t, err)
}

func TestServerCookieInterceptorAcceptsMatchingCookie(t *testing.T) {
	interceptor := serverCookieInterceptor("secret")
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(cookieMetadataKey, "secret"))
	handler := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	resp, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestClientCookieInterceptorAttachesCookie(t *testing.T) {
	interceptor := clientCookieInterceptor("secret")
	var gotMD metadata.MD
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		gotMD, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	err := interceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Len(t, gotMD.Get(cookieMetadataKey), 1)
	assert.Equal(t, "secret", gotMD.Get(cookieMetadataKey)[0])
}
