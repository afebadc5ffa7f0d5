package workflow

import (
	"fmt"

	"github.com/skitterhq/skitter/pkg/operation"
)

// endpoint is a resolved (node, port) pair after nested boundaries have
// been spliced away.
type endpoint struct {
	node string
	port string
}

// Flatten inlines every nested workflow node into its parent: edges
// into a nested node's in-port are rewritten to the
// destinations of that port inside the child, edges out of a nested
// node are rewritten from the interior sources that feed its out-port,
// and child node names are prefixed with the parent node name to keep
// the result unique. Flatten is idempotent on an already-flat workflow
// and preserves link ordering per source port.
func Flatten(w *Workflow, operations map[string]*operation.Operation) (*Workflow, error) {
	if err := w.Validate(operations); err != nil {
		return nil, err
	}

	flatChildren := make(map[string]*Workflow, len(w.Nodes))
	for name, n := range w.Nodes {
		if !n.IsNested() {
			continue
		}
		flat, err := Flatten(n.Nested, operations)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: flattening nested node %q: %w", w.Name, name, err)
		}
		flatChildren[name] = flat
	}

	out := New(w.Name)
	out.InPorts = append([]string(nil), w.InPorts...)
	out.OutPorts = append([]string(nil), w.OutPorts...)

	for name, n := range w.Nodes {
		if !n.IsNested() {
			out.Nodes[name] = n
			continue
		}
		child := flatChildren[name]
		for childName, childNode := range child.Nodes {
			flatName := name + "_" + childName
			out.Nodes[flatName] = Node{
				Name:      flatName,
				Operation: childNode.Operation,
				Args:      childNode.Args,
			}
		}
	}

	for _, l := range w.Links {
		srcs, err := resolveSources(w, flatChildren, l.SrcNode, l.SrcPort)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", w.Name, err)
		}
		dsts, err := resolveDestinations(w, flatChildren, l.DstNode, l.DstPort)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", w.Name, err)
		}
		for _, src := range srcs {
			for _, dst := range dsts {
				out.Links = append(out.Links, Link{
					SrcNode: src.node, SrcPort: src.port,
					DstNode: dst.node, DstPort: dst.port,
				})
			}
		}
	}

	return out, nil
}

// resolveSources expands (node, port) into the interior leaf endpoints
// that actually produce values reaching it, splicing through a nested
// node's out-port boundary.
func resolveSources(w *Workflow, flatChildren map[string]*Workflow, node, port string) ([]endpoint, error) {
	if node == "" {
		return []endpoint{{node: "", port: port}}, nil
	}
	n, ok := w.Nodes[node]
	if !ok {
		return nil, fmt.Errorf("link references unknown node %q", node)
	}
	if !n.IsNested() {
		return []endpoint{{node: node, port: port}}, nil
	}
	child := flatChildren[node]
	var eps []endpoint
	for _, cl := range child.Links {
		if cl.DstNode == "" && cl.DstPort == port {
			eps = append(eps, endpoint{node: node + "_" + cl.SrcNode, port: cl.SrcPort})
		}
	}
	return eps, nil
}

// resolveDestinations expands (node, port) into the interior leaf
// endpoints that actually consume values sent to it, splicing through a
// nested node's in-port boundary.
func resolveDestinations(w *Workflow, flatChildren map[string]*Workflow, node, port string) ([]endpoint, error) {
	if node == "" {
		return []endpoint{{node: "", port: port}}, nil
	}
	n, ok := w.Nodes[node]
	if !ok {
		return nil, fmt.Errorf("link references unknown node %q", node)
	}
	if !n.IsNested() {
		return []endpoint{{node: node, port: port}}, nil
	}
	child := flatChildren[node]
	var eps []endpoint
	for _, cl := range child.Links {
		if cl.SrcNode == "" && cl.SrcPort == port {
			eps = append(eps, endpoint{node: node + "_" + cl.DstNode, port: cl.DstPort})
		}
	}
	return eps, nil
}
