package transport

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a thin typed wrapper over a single *grpc.ClientConn, calling the
// Transport service's four methods without any protoc-generated stub.
type Client struct {
	remote string
	conn   *grpc.ClientConn
}

// Dial opens a connection to remote, authenticating every call with cookie.
func Dial(remote, cookie string) (*Client, error) {
	conn, err := grpc.NewClient(remote,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(clientCookieInterceptor(cookie)),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, err
	}
	return &Client{remote: remote, conn: conn}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Remote returns the dialed address.
func (c *Client) Remote() string { return c.remote }

func (c *Client) invoke(ctx context.Context, method string, req, reply any) error {
	return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, reply)
}

// Probe calls the remote Beacon.
func (c *Client) Probe(ctx context.Context) (*ProbeReply, error) {
	reply := new(ProbeReply)
	if err := c.invoke(ctx, "Probe", &ProbeRequest{}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Accept asks the remote to accept this runtime as a connection.
func (c *Client) Accept(ctx context.Context, name string, m string, tags []string) (*AcceptReply, error) {
	reply := new(AcceptReply)
	req := &AcceptRequest{Name: name, Mode: m, Tags: tags}
	if err := c.invoke(ctx, "Accept", req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Heartbeat pings the remote for liveness.
func (c *Client) Heartbeat(ctx context.Context, name string) error {
	return c.invoke(ctx, "Heartbeat", &HeartbeatRequest{Name: name}, new(HeartbeatReply))
}

// Invoke calls a named remote procedure with args marshaled to JSON, and
// unmarshals the result into out (if out is non-nil).
func (c *Client) Invoke(ctx context.Context, procedure string, args any, out any) error {
	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return err
		}
		raw = data
	}
	reply := new(InvokeReply)
	if err := c.invoke(ctx, "Invoke", &InvokeRequest{Procedure: procedure, Args: raw}, reply); err != nil {
		return err
	}
	if reply.Error != "" {
		return &RemoteError{Procedure: procedure, Message: reply.Error}
	}
	if out != nil && len(reply.Result) > 0 {
		return json.Unmarshal(reply.Result, out)
	}
	return nil
}

// RemoteError reports a procedure failure reported by the remote side.
type RemoteError struct {
	Procedure string
	Message   string
}

func (e *RemoteError) Error() string {
	return "transport: remote procedure " + e.Procedure + " failed: " + e.Message
}
