package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/strategy"
)

type recordingStrategy struct {
	mu       sync.Mutex
	received []operation.Value
	panicOn  operation.Value
}

func (s *recordingStrategy) Deploy(ctx strategy.Context, creator strategy.Creator) (any, error) {
	return nil, nil
}

func (s *recordingStrategy) Deliver(ctx strategy.Context, sender strategy.Sender, value operation.Value, destPort int) error {
	return nil
}

func (s *recordingStrategy) Process(ctx strategy.Context, message, state operation.Value, tag string) (operation.Value, error) {
	if s.panicOn != nil && message == s.panicOn {
		panic("boom")
	}
	s.mu.Lock()
	s.received = append(s.received, message)
	s.mu.Unlock()
	return state, nil
}

func (s *recordingStrategy) seen() []operation.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]operation.Value(nil), s.received...)
}

func TestRegistryCreateGetAndRemoveDeployment(t *testing.T) {
	r := NewRegistry()
	strat := &recordingStrategy{}
	ctx := strategy.Context{Ref: "dep", ComponentIndex: 0}
	initial := InitialState{Value: 0}

	sup, err := r.Create("dep", 0, "w1", ctx, strat, initial, "tag")
	require.NoError(t, err)
	assert.Equal(t, ID{Ref: "dep", ComponentIndex: 0, WorkerID: "w1"}, sup.ID())

	got, ok := r.Get(ID{Ref: "dep", ComponentIndex: 0, WorkerID: "w1"})
	require.True(t, ok)
	assert.Same(t, sup, got)

	assert.Len(t, r.All(), 1)

	r.RemoveDeployment("dep")
	_, ok = r.Get(ID{Ref: "dep", ComponentIndex: 0, WorkerID: "w1"})
	assert.False(t, ok)
	assert.Empty(t, r.All())
}

func TestRegistryCreateRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	strat := &recordingStrategy{}
	ctx := strategy.Context{Ref: "dep", ComponentIndex: 0}
	initial := InitialState{Value: 0}

	_, err := r.Create("dep", 0, "w1", ctx, strat, initial, "tag")
	require.NoError(t, err)

	_, err = r.Create("dep", 0, "w1", ctx, strat, initial, "tag")
	assert.Error(t, err)
}

func TestInstanceProcessesMessagesInOrder(t *testing.T) {
	strat := &recordingStrategy{}
	ctx := strategy.Context{Ref: "dep", ComponentIndex: 0}
	sup := Spawn(ID{Ref: "dep", ComponentIndex: 0, WorkerID: "w1"}, ctx, strat, InitialState{Value: 0}, "tag")
	defer sup.Stop()

	sup.Send(ctx, "a")
	sup.Send(ctx, "b")
	sup.External("c")

	require.Eventually(t, func() bool {
		return len(strat.seen()) == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []operation.Value{"a", "b", "c"}, strat.seen())
}

func TestSupervisorRestartsOnPanicWithFreshState(t *testing.T) {
	strat := &recordingStrategy{panicOn: "boom"}
	ctx := strategy.Context{Ref: "dep", ComponentIndex: 0}
	sup := Spawn(ID{Ref: "dep", ComponentIndex: 0, WorkerID: "w1"}, ctx, strat, InitialState{Value: 0}, "tag")
	defer sup.Stop()

	sup.Send(ctx, "boom")
	sup.Send(ctx, "after-crash")

	require.Eventually(t, func() bool {
		for _, v := range strat.seen() {
			if v == "after-crash" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestInstanceIDString(t *testing.T) {
	id := ID{Ref: "dep", ComponentIndex: 2, WorkerID: "w9"}
	assert.Equal(t, "dep/2/w9", id.String())
}
