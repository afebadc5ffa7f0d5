package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/strategy"
	"github.com/skitterhq/skitter/pkg/worker"
)

type noopStrategy struct{}

func (noopStrategy) Deploy(ctx strategy.Context, creator strategy.Creator) (any, error) {
	return nil, nil
}
func (noopStrategy) Deliver(ctx strategy.Context, sender strategy.Sender, value operation.Value, destPort int) error {
	return nil
}
func (noopStrategy) Process(ctx strategy.Context, message, state operation.Value, tag string) (operation.Value, error) {
	return state, nil
}

func TestLocalCreateWorkerRegistersUnderGeneratedID(t *testing.T) {
	workers := worker.NewRegistry()
	l := NewLocal(workers)
	ctx := strategy.Context{Ref: "dep", ComponentIndex: 0, Strategy: noopStrategy{}}

	id, err := l.CreateWorker(ctx, 0, "pinned", strategy.PlacementHint{})
	require.NoError(t, err)
	assert.Equal(t, "w1", id)

	_, ok := workers.Get(worker.ID{Ref: "dep", ComponentIndex: 0, WorkerID: id})
	assert.True(t, ok)
}

func TestLocalCreateWorkerGeneratesDistinctIDs(t *testing.T) {
	workers := worker.NewRegistry()
	l := NewLocal(workers)
	ctx := strategy.Context{Ref: "dep", ComponentIndex: 0, Strategy: noopStrategy{}}

	id1, err := l.CreateWorker(ctx, 0, "a", strategy.PlacementHint{})
	require.NoError(t, err)
	id2, err := l.CreateWorker(ctx, 0, "b", strategy.PlacementHint{})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestLocalSendDeliversToWorkerCreatedUnderTag(t *testing.T) {
	workers := worker.NewRegistry()
	l := NewLocal(workers)
	ctx := strategy.Context{Ref: "dep", ComponentIndex: 0, Strategy: noopStrategy{}}

	_, err := l.CreateWorker(ctx, 0, "pinned", strategy.PlacementHint{})
	require.NoError(t, err)

	err = l.Send(ctx, "hello", "pinned")
	assert.NoError(t, err)
}

func TestLocalSendErrorsForUnknownWorker(t *testing.T) {
	workers := worker.NewRegistry()
	l := NewLocal(workers)
	ctx := strategy.Context{Ref: "dep", ComponentIndex: 0}

	err := l.Send(ctx, "hello", "missing")
	assert.Error(t, err)
}
