// Package workflow models a graph of operation nodes connected by links
// and implements flattening of nested workflows into a single
// flat graph.
package workflow

import (
	"fmt"

	"github.com/skitterhq/skitter/pkg/operation"
)

// Link is an edge (srcNode, srcPort) -> (dstNode, dstPort). Multiple
// links may share a source port; each destination port accepts exactly
// one incoming link within its parent graph.
type Link struct {
	SrcNode string
	SrcPort string
	DstNode string
	DstPort string
}

// Node is either a leaf operation reference or a nested Workflow.
type Node struct {
	Name     string
	Args     any
	Operation string   // set when this node is a leaf; the operation's definition name
	Nested   *Workflow // set when this node wraps a nested workflow
}

// IsNested reports whether this node wraps another workflow.
func (n Node) IsNested() bool { return n.Nested != nil }

// Workflow is a graph: named nodes plus links between their ports, and
// the workflow's own in/out ports so it can be nested inside another
// workflow as if it were an operation.
type Workflow struct {
	Name     string
	Nodes    map[string]Node
	Links    []Link
	InPorts  []string
	OutPorts []string
}

// New returns an empty named Workflow.
func New(name string) *Workflow {
	return &Workflow{Name: name, Nodes: make(map[string]Node)}
}

// AddOperationNode adds a leaf node bound to an operation definition.
func (w *Workflow) AddOperationNode(name, operation string, args any) error {
	if _, exists := w.Nodes[name]; exists {
		return fmt.Errorf("workflow %s: duplicate node name %q", w.Name, name)
	}
	w.Nodes[name] = Node{Name: name, Operation: operation, Args: args}
	return nil
}

// AddNestedNode adds a node wrapping another workflow.
func (w *Workflow) AddNestedNode(name string, nested *Workflow, args any) error {
	if _, exists := w.Nodes[name]; exists {
		return fmt.Errorf("workflow %s: duplicate node name %q", w.Name, name)
	}
	w.Nodes[name] = Node{Name: name, Nested: nested, Args: args}
	return nil
}

// Link connects an out-port to an in-port. "" as srcNode/dstNode refers
// to the workflow's own boundary ports (for nesting).
func (w *Workflow) Link(srcNode, srcPort, dstNode, dstPort string) {
	w.Links = append(w.Links, Link{SrcNode: srcNode, SrcPort: srcPort, DstNode: dstNode, DstPort: dstPort})
}

// Validate checks that every referenced node exists, no in-port of any
// node has more than one incoming link (an in-port with no incoming link
// is accepted, without a diagnostic), and that every link's
// endpoints name a port that actually exists there — a leaf node's
// in/out ports come from operations, a nested node's from its
// workflow's own boundary ports. operations resolves a leaf node's
// declared operation name to its definition; the operation- and
// port-existence checks are skipped (not the node/arity checks) when
// operations is nil, for callers validating structure before any
// operation registry is available.
func (w *Workflow) Validate(operations map[string]*operation.Operation) error {
	for name, n := range w.Nodes {
		if n.IsNested() || operations == nil {
			continue
		}
		if _, ok := operations[n.Operation]; !ok {
			return fmt.Errorf("workflow %s: node %q references unknown operation %q", w.Name, name, n.Operation)
		}
	}

	inbound := make(map[string]int)
	for _, l := range w.Links {
		if l.SrcNode != "" {
			n, ok := w.Nodes[l.SrcNode]
			if !ok {
				return fmt.Errorf("workflow %s: link references unknown source node %q", w.Name, l.SrcNode)
			}
			if err := w.checkOutPort(n, l.SrcNode, l.SrcPort, operations); err != nil {
				return err
			}
		}
		if l.DstNode != "" {
			n, ok := w.Nodes[l.DstNode]
			if !ok {
				return fmt.Errorf("workflow %s: link references unknown destination node %q", w.Name, l.DstNode)
			}
			if err := w.checkInPort(n, l.DstNode, l.DstPort, operations); err != nil {
				return err
			}
			inbound[l.DstNode+"."+l.DstPort]++
		}
	}
	for key, count := range inbound {
		if count > 1 {
			return fmt.Errorf("workflow %s: in-port %q has %d incoming links, want exactly 1", w.Name, key, count)
		}
	}
	return nil
}

func (w *Workflow) checkOutPort(n Node, nodeName, port string, operations map[string]*operation.Operation) error {
	if n.IsNested() {
		if !containsPort(n.Nested.OutPorts, port) {
			return fmt.Errorf("workflow %s: node %q has no out-port %q", w.Name, nodeName, port)
		}
		return nil
	}
	if operations == nil {
		return nil
	}
	op, ok := operations[n.Operation]
	if !ok {
		return nil
	}
	if _, ok := op.OutPortIndex(port); !ok {
		return fmt.Errorf("workflow %s: node %q has no out-port %q", w.Name, nodeName, port)
	}
	return nil
}

func (w *Workflow) checkInPort(n Node, nodeName, port string, operations map[string]*operation.Operation) error {
	if n.IsNested() {
		if !containsPort(n.Nested.InPorts, port) {
			return fmt.Errorf("workflow %s: node %q has no in-port %q", w.Name, nodeName, port)
		}
		return nil
	}
	if operations == nil {
		return nil
	}
	op, ok := operations[n.Operation]
	if !ok {
		return nil
	}
	if _, ok := op.InPortIndex(port); !ok {
		return fmt.Errorf("workflow %s: node %q has no in-port %q", w.Name, nodeName, port)
	}
	return nil
}

func containsPort(ports []string, name string) bool {
	for _, p := range ports {
		if p == name {
			return true
		}
	}
	return false
}
