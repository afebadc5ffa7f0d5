package deploy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skitterhq/skitter/pkg/component"
	"github.com/skitterhq/skitter/pkg/operation"
	"github.com/skitterhq/skitter/pkg/registry"
	"github.com/skitterhq/skitter/pkg/strategy"
	"github.com/skitterhq/skitter/pkg/subscribe"
	"github.com/skitterhq/skitter/pkg/task"
	"github.com/skitterhq/skitter/pkg/transport"
	"github.com/skitterhq/skitter/pkg/workflow"
)

type recordingStrategy struct {
	deploys []strategy.Context
}

func (s *recordingStrategy) Deploy(ctx strategy.Context, creator strategy.Creator) (any, error) {
	s.deploys = append(s.deploys, ctx)
	return "deployment-data", nil
}

func (s *recordingStrategy) Deliver(ctx strategy.Context, sender strategy.Sender, value operation.Value, destPort int) error {
	return nil
}

func (s *recordingStrategy) Process(ctx strategy.Context, message, state operation.Value, tag string) (operation.Value, error) {
	return state, nil
}

func newPipeline(t *testing.T, regs Registries) (*Pipeline, *component.Store) {
	t.Helper()
	store := component.New()
	reg := registry.New()
	pool := transport.NewPool("cookie")
	tasks := task.New(pool, reg)
	notifier := subscribe.New()
	return New(regs, store, reg, tasks, notifier, "local"), store
}

func sourceSinkWorkflow(t *testing.T) *workflow.Workflow {
	t.Helper()
	wf := workflow.New("pipeline")
	require.NoError(t, wf.AddOperationNode("source", "Source", nil))
	require.NoError(t, wf.AddOperationNode("sink", "Sink", nil))
	wf.Link("source", "out", "sink", "in")
	return wf
}

func TestDeployAssignsComponentsAndInstallsLinksLocally(t *testing.T) {
	sourceOp, err := operation.NewBuilder("Source").OutPorts("out").Strategy("s").Build()
	require.NoError(t, err)
	sinkOp, err := operation.NewBuilder("Sink").InPorts("in").Strategy("s").Build()
	require.NoError(t, err)
	strat := &recordingStrategy{}

	regs := Registries{
		Operations: map[string]*operation.Operation{"Source": sourceOp, "Sink": sinkOp},
		Strategies: map[string]strategy.Strategy{"s": strat},
	}
	pipeline, store := newPipeline(t, regs)

	ref, err := pipeline.Deploy(context.Background(), sourceSinkWorkflow(t), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.True(t, store.HasDeployment(ref))
	assert.Len(t, strat.deploys, 2)
	assert.Len(t, store.Indices(ref), 2)
	for _, idx := range store.Indices(ref) {
		_, ok := store.Links(ref, idx)
		assert.True(t, ok)
	}
	// sorted names give sink index 0 and source index 1
	sourceLinks, _ := store.Links(ref, 1)
	assert.Len(t, sourceLinks["out"], 1)
}

func TestDeployRejectsUnknownOperation(t *testing.T) {
	regs := Registries{Operations: map[string]*operation.Operation{}, Strategies: map[string]strategy.Strategy{}}
	pipeline, _ := newPipeline(t, regs)

	wf := workflow.New("pipeline")
	require.NoError(t, wf.AddOperationNode("a", "Missing", nil))

	_, err := pipeline.Deploy(context.Background(), wf, nil)
	assert.Error(t, err)
}

func TestDeployRejectsUnknownStrategy(t *testing.T) {
	op, err := operation.NewBuilder("Op").Strategy("missing-strategy").Build()
	require.NoError(t, err)
	regs := Registries{
		Operations: map[string]*operation.Operation{"Op": op},
		Strategies: map[string]strategy.Strategy{},
	}
	pipeline, _ := newPipeline(t, regs)

	wf := workflow.New("pipeline")
	require.NoError(t, wf.AddOperationNode("a", "Op", nil))

	_, err = pipeline.Deploy(context.Background(), wf, nil)
	assert.Error(t, err)
}

func TestPipelineRemoveClearsStoreAndInstalls(t *testing.T) {
	sourceOp, err := operation.NewBuilder("Source").OutPorts("out").Strategy("s").Build()
	require.NoError(t, err)
	sinkOp, err := operation.NewBuilder("Sink").InPorts("in").Strategy("s").Build()
	require.NoError(t, err)
	strat := &recordingStrategy{}
	regs := Registries{
		Operations: map[string]*operation.Operation{"Source": sourceOp, "Sink": sinkOp},
		Strategies: map[string]strategy.Strategy{"s": strat},
	}
	pipeline, store := newPipeline(t, regs)

	ref, err := pipeline.Deploy(context.Background(), sourceSinkWorkflow(t), nil)
	require.NoError(t, err)

	pipeline.Remove(ref)
	assert.False(t, store.HasDeployment(ref))
}

func TestApplyInstallsContextsAndLinksFromWireFormat(t *testing.T) {
	sourceOp, err := operation.NewBuilder("Source").OutPorts("out").Strategy("s").Build()
	require.NoError(t, err)
	sinkOp, err := operation.NewBuilder("Sink").InPorts("in").Strategy("s").Build()
	require.NoError(t, err)
	strat := &recordingStrategy{}
	regs := Registries{
		Operations: map[string]*operation.Operation{"Source": sourceOp, "Sink": sinkOp},
		Strategies: map[string]strategy.Strategy{"s": strat},
	}
	pipeline, store := newPipeline(t, regs)

	install := Install{
		Ref: "dep-1",
		Nodes: []NodeMeta{
			{Index: 0, Name: "source", Operation: "Source", Strategy: "s"},
			{Index: 1, Name: "sink", Operation: "Sink", Strategy: "s"},
		},
		Links: []LinkEntry{{SrcIndex: 0, SrcPort: "out", DstIndex: 1, DstPort: "in"}},
	}

	require.NoError(t, pipeline.apply(install))
	assert.True(t, store.HasDeployment("dep-1"))

	links, ok := store.Links("dep-1", 0)
	require.True(t, ok)
	require.Contains(t, links, "out")
	assert.Equal(t, 1, len(links["out"]))
}

func TestApplyRejectsUnknownOperation(t *testing.T) {
	regs := Registries{Operations: map[string]*operation.Operation{}, Strategies: map[string]strategy.Strategy{}}
	pipeline, _ := newPipeline(t, regs)

	install := Install{Ref: "dep-1", Nodes: []NodeMeta{{Index: 0, Name: "a", Operation: "Missing", Strategy: "s"}}}
	err := pipeline.apply(install)
	assert.Error(t, err)
}
