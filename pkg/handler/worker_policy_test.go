package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skitterhq/skitter/pkg/mode"
	"github.com/skitterhq/skitter/pkg/registry"
)

func TestWorkerMasterPolicyAcceptsExactlyOneMaster(t *testing.T) {
	reg := registry.New()
	p := NewWorkerMasterPolicy(reg, false, nil)

	require.NoError(t, p.Accept("master-1", mode.Master, nil))
	master, ok := p.Master()
	require.True(t, ok)
	assert.Equal(t, "master-1", master)

	err := p.Accept("master-1", mode.Master, nil)
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	err = p.Accept("master-2", mode.Master, nil)
	assert.ErrorIs(t, err, ErrHasMaster)
}

func TestWorkerMasterPolicyRejectsNonMaster(t *testing.T) {
	p := NewWorkerMasterPolicy(registry.New(), false, nil)
	err := p.Accept("worker-1", mode.Worker, nil)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestWorkerMasterPolicyRemoteDownClearsMasterAndShutsDown(t *testing.T) {
	reg := registry.New()
	called := false
	p := NewWorkerMasterPolicy(reg, true, func() { called = true })

	require.NoError(t, p.Accept("master-1", mode.Master, nil))
	p.RemoteDown("master-1")

	_, ok := p.Master()
	assert.False(t, ok)
	assert.True(t, called)
	assert.False(t, reg.Connected("master-1"))
}

func TestWorkerMasterPolicyRemoteDownIgnoresNonCurrentMaster(t *testing.T) {
	reg := registry.New()
	called := false
	p := NewWorkerMasterPolicy(reg, true, func() { called = true })

	require.NoError(t, p.Accept("master-1", mode.Master, nil))
	p.RemoteDown("some-other-node")

	_, ok := p.Master()
	assert.True(t, ok)
	assert.False(t, called)
}

func TestWorkerMasterPolicyRemove(t *testing.T) {
	reg := registry.New()
	p := NewWorkerMasterPolicy(reg, false, nil)

	require.NoError(t, p.Accept("master-1", mode.Master, nil))
	p.Remove("master-1")

	_, ok := p.Master()
	assert.False(t, ok)
	assert.False(t, reg.Connected("master-1"))
}
