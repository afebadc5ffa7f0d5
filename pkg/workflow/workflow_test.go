package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skitterhq/skitter/pkg/operation"
)

func mustOperation(t *testing.T, name string, inPorts, outPorts []string) *operation.Operation {
	t.Helper()
	b := operation.NewBuilder(name).Strategy("noop")
	if len(inPorts) > 0 {
		b = b.InPorts(inPorts...)
	}
	if len(outPorts) > 0 {
		b = b.OutPorts(outPorts...)
	}
	op, err := b.Build()
	require.NoError(t, err)
	return op
}

func TestAddOperationNodeRejectsDuplicates(t *testing.T) {
	w := New("pipeline")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	err := w.AddOperationNode("a", "Filter", nil)
	assert.Error(t, err)
}

func TestValidateCatchesUnknownNodeReferences(t *testing.T) {
	w := New("pipeline")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	w.Link("a", "out", "missing", "in")
	assert.Error(t, w.Validate(nil))
}

func TestValidateRejectsMultipleIncomingLinks(t *testing.T) {
	w := New("pipeline")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	require.NoError(t, w.AddOperationNode("b", "Map", nil))
	require.NoError(t, w.AddOperationNode("c", "Sink", nil))
	w.Link("a", "out", "c", "in")
	w.Link("b", "out", "c", "in")
	assert.Error(t, w.Validate(nil))
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	w := New("pipeline")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	require.NoError(t, w.AddOperationNode("b", "Sink", nil))
	w.Link("a", "out", "b", "in")
	assert.NoError(t, w.Validate(nil))
}

func TestValidateCatchesUnknownOperation(t *testing.T) {
	w := New("pipeline")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	operations := map[string]*operation.Operation{
		"Sink": mustOperation(t, "Sink", []string{"in"}, nil),
	}
	err := w.Validate(operations)
	assert.ErrorContains(t, err, `unknown operation "Map"`)
}

func TestValidateCatchesUnknownOutPort(t *testing.T) {
	w := New("pipeline")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	require.NoError(t, w.AddOperationNode("b", "Sink", nil))
	w.Link("a", "missing", "b", "in")
	operations := map[string]*operation.Operation{
		"Map":  mustOperation(t, "Map", []string{"in"}, []string{"out"}),
		"Sink": mustOperation(t, "Sink", []string{"in"}, nil),
	}
	err := w.Validate(operations)
	assert.ErrorContains(t, err, `no out-port "missing"`)
}

func TestValidateCatchesUnknownInPort(t *testing.T) {
	w := New("pipeline")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	require.NoError(t, w.AddOperationNode("b", "Sink", nil))
	w.Link("a", "out", "b", "missing")
	operations := map[string]*operation.Operation{
		"Map":  mustOperation(t, "Map", []string{"in"}, []string{"out"}),
		"Sink": mustOperation(t, "Sink", []string{"in"}, nil),
	}
	err := w.Validate(operations)
	assert.ErrorContains(t, err, `no in-port "missing"`)
}

func TestValidateCatchesUnknownNestedBoundaryPort(t *testing.T) {
	inner := New("inner")
	inner.InPorts = []string{"in"}
	inner.OutPorts = []string{"out"}
	require.NoError(t, inner.AddOperationNode("double", "Double", nil))
	inner.Link("", "in", "double", "in")
	inner.Link("double", "out", "", "out")

	outer := New("outer")
	require.NoError(t, outer.AddOperationNode("source", "Source", nil))
	require.NoError(t, outer.AddNestedNode("wrapped", inner, nil))
	outer.Link("source", "out", "wrapped", "missing")

	err := outer.Validate(nil)
	assert.ErrorContains(t, err, `no in-port "missing"`)
}

func TestValidateAcceptsKnownOperationsAndPorts(t *testing.T) {
	w := New("pipeline")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	require.NoError(t, w.AddOperationNode("b", "Sink", nil))
	w.Link("a", "out", "b", "in")
	operations := map[string]*operation.Operation{
		"Map":  mustOperation(t, "Map", []string{"in"}, []string{"out"}),
		"Sink": mustOperation(t, "Sink", []string{"in"}, nil),
	}
	assert.NoError(t, w.Validate(operations))
}

func TestFlattenInlinesNestedWorkflow(t *testing.T) {
	inner := New("inner")
	require.NoError(t, inner.AddOperationNode("double", "Double", nil))
	inner.InPorts = []string{"in"}
	inner.OutPorts = []string{"out"}
	inner.Link("", "in", "double", "in")
	inner.Link("double", "out", "", "out")
	require.NoError(t, inner.Validate(nil))

	outer := New("outer")
	require.NoError(t, outer.AddOperationNode("source", "Source", nil))
	require.NoError(t, outer.AddNestedNode("wrapped", inner, nil))
	require.NoError(t, outer.AddOperationNode("sink", "Sink", nil))
	outer.Link("source", "out", "wrapped", "in")
	outer.Link("wrapped", "out", "sink", "in")
	require.NoError(t, outer.Validate(nil))

	flat, err := Flatten(outer, nil)
	require.NoError(t, err)

	assert.Contains(t, flat.Nodes, "source")
	assert.Contains(t, flat.Nodes, "sink")
	assert.Contains(t, flat.Nodes, "wrapped_double")
	assert.NotContains(t, flat.Nodes, "wrapped")

	var sawSourceToDouble, sawDoubleToSink bool
	for _, l := range flat.Links {
		if l.SrcNode == "source" && l.DstNode == "wrapped_double" {
			sawSourceToDouble = true
		}
		if l.SrcNode == "wrapped_double" && l.DstNode == "sink" {
			sawDoubleToSink = true
		}
	}
	assert.True(t, sawSourceToDouble, "expected source -> wrapped_double link")
	assert.True(t, sawDoubleToSink, "expected wrapped_double -> sink link")
}

func TestFlattenRejectsInvalidGraph(t *testing.T) {
	w := New("broken")
	require.NoError(t, w.AddOperationNode("a", "Map", nil))
	w.Link("a", "out", "missing", "in")
	_, err := Flatten(w, nil)
	assert.Error(t, err)
}
