package handler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skitterhq/skitter/pkg/mode"
)

type fakePolicy struct {
	acceptErr error
	accepted  []string
	removed   []string
	down      []string
}

func (f *fakePolicy) Accept(remote string, remoteMode mode.Mode, tags []string) error {
	if f.acceptErr != nil {
		return f.acceptErr
	}
	f.accepted = append(f.accepted, remote)
	return nil
}

func (f *fakePolicy) Remove(remote string) { f.removed = append(f.removed, remote) }
func (f *fakePolicy) RemoteDown(remote string) { f.down = append(f.down, remote) }

func TestHandlerAcceptConnectionDelegatesToPolicy(t *testing.T) {
	p := &fakePolicy{}
	h := New(mode.Worker, p)

	err := h.AcceptConnection("worker-1", mode.Worker, []string{"gpu"})
	require.NoError(t, err)
	assert.Equal(t, []string{"worker-1"}, p.accepted)
}

func TestHandlerAcceptConnectionPropagatesError(t *testing.T) {
	refused := errors.New("nope")
	p := &fakePolicy{acceptErr: refused}
	h := New(mode.Worker, p)

	err := h.AcceptConnection("worker-1", mode.Worker, nil)
	assert.ErrorIs(t, err, refused)
}

func TestHandlerRemoveConnectionAndRemoteDown(t *testing.T) {
	p := &fakePolicy{}
	h := New(mode.Worker, p)

	h.RemoveConnection("worker-1")
	h.RemoteDown("worker-2")

	assert.Equal(t, []string{"worker-1"}, p.removed)
	assert.Equal(t, []string{"worker-2"}, p.down)
}
