// Package connect implements the three-phase handshake that
// safely establishes bidirectional membership between two Skitter
// runtimes: verify the remote is reachable and compatible, have the
// local handler for its mode accept it, then have the remote handler for
// this runtime's mode accept it back — rolling back the local accept if
// the remote leg fails.
package connect

import (
	"context"
	"errors"
	"fmt"

	"github.com/skitterhq/skitter/pkg/beacon"
	"github.com/skitterhq/skitter/pkg/dispatcher"
	"github.com/skitterhq/skitter/pkg/health"
	"github.com/skitterhq/skitter/pkg/log"
	"github.com/skitterhq/skitter/pkg/metrics"
	"github.com/skitterhq/skitter/pkg/mode"
	"github.com/skitterhq/skitter/pkg/transport"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinel errors surfaced by Connect, matching the handshake's negotiation and
// identity error taxonomy. Callers decide how to aggregate these; Connect
// never panics on a remote being unreachable or incompatible.
var (
	ErrNotDistributed = errors.New("connect: local runtime is not distributed")
	ErrNotConnected   = errors.New("connect: transport refused the connection")
	ErrNotSkitter     = errors.New("connect: remote has no Skitter beacon")
	ErrIncompatible   = errors.New("connect: version mismatch")
	ErrModeMismatch   = errors.New("connect: remote is not the expected mode")
)

// Deps bundles the local services Connect needs to complete a handshake.
type Deps struct {
	Beacon       *beacon.Beacon
	Dispatcher   *dispatcher.Dispatcher
	Pool         *transport.Pool
	LocalName    string
	HealthConfig health.Config
}

// Connect runs the full handshake against remote. If expectedMode is
// non-empty, the remote's reported mode must match it or ErrModeMismatch
// is returned before either side accepts anything.
func Connect(ctx context.Context, deps Deps, remote string, expectedMode mode.Mode, tags []string) (remoteMode mode.Mode, err error) {
	logger := log.WithComponent("connect").With().Str("remote", remote).Logger()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.ConnectAttempts.WithLabelValues(outcome).Inc()
	}()

	if deps.Pool == nil || deps.Dispatcher == nil || deps.Beacon == nil {
		return "", ErrNotDistributed
	}

	remoteMode, client, err := verifyRemote(ctx, deps, remote)
	if err != nil {
		logger.Warn().Err(err).Msg("verify_remote failed")
		return "", err
	}

	if expectedMode != "" && remoteMode != expectedMode {
		return "", fmt.Errorf("%w: got %s, want %s", ErrModeMismatch, remoteMode, expectedMode)
	}

	local, err := deps.Beacon.Probe(ctx)
	if err != nil {
		return "", err
	}

	// Step 3: the LOCAL handler for the remote's mode accepts it.
	accepted, err := deps.Dispatcher.Dispatch(ctx, remote, remoteMode, tags)
	if err != nil {
		return "", err
	}
	monitor := health.Watch(client, remote, deps.HealthConfig, func(r string) {
		accepted.RemoteDown(r)
	})

	// Step 4: the REMOTE handler for the local mode accepts us back.
	reply, err := client.Accept(ctx, deps.LocalName, string(local.Mode), tags)
	if err != nil {
		monitor.Stop()
		accepted.RemoveConnection(remote)
		return "", err
	}
	if reply.Error != "" {
		monitor.Stop()
		accepted.RemoveConnection(remote)
		return "", fmt.Errorf("connect: remote rejected accept: %s", reply.Error)
	}

	logger.Info().Str("remote_mode", string(remoteMode)).Msg("connected")
	return remoteMode, nil
}

func verifyRemote(ctx context.Context, deps Deps, remote string) (mode.Mode, *transport.Client, error) {
	client, err := deps.Pool.Get(remote)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	local, err := deps.Beacon.Probe(ctx)
	if err != nil {
		return "", nil, err
	}

	reply, err := client.Probe(ctx)
	if err != nil {
		deps.Pool.Drop(remote)
		if status.Code(err) == codes.Unavailable {
			return "", nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return "", nil, fmt.Errorf("%w: %v", ErrNotSkitter, err)
	}
	if reply.Version != local.Version {
		return "", nil, fmt.Errorf("%w: local %s, remote %s", ErrIncompatible, local.Version, reply.Version)
	}
	return mode.Mode(reply.Mode), client, nil
}
