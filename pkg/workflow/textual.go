package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// textualNode is one node entry of a textual workflow file.
type textualNode struct {
	Name      string         `yaml:"name"`
	Operation string         `yaml:"operation,omitempty"`
	Workflow  string         `yaml:"workflow,omitempty"`
	Args      map[string]any `yaml:"args,omitempty"`
}

// textualLink is one link entry of a textual workflow file, written
// "node.port" on each side.
type textualLink struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// textualFile is the top-level YAML schema accepted by LoadFile: a
// convenience authoring format for `skitter --deploy`, not a wire format.
// Nested workflows are referenced by name and must appear earlier in
// Workflows so they can be resolved by the time their parent is built.
type textualFile struct {
	Workflows []struct {
		Name     string        `yaml:"name"`
		InPorts  []string      `yaml:"in_ports,omitempty"`
		OutPorts []string      `yaml:"out_ports,omitempty"`
		Nodes    []textualNode `yaml:"nodes"`
		Links    []textualLink `yaml:"links"`
	} `yaml:"workflows"`
}

// LoadFile reads a textual workflow description from path and builds the
// named workflow (and any workflows it nests), returning the workflow
// named target.
func LoadFile(path, target string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: reading %s: %w", path, err)
	}

	var file textualFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("workflow: parsing %s: %w", path, err)
	}

	built := make(map[string]*Workflow, len(file.Workflows))
	for _, def := range file.Workflows {
		w := New(def.Name)
		w.InPorts = append(w.InPorts, def.InPorts...)
		w.OutPorts = append(w.OutPorts, def.OutPorts...)

		for _, n := range def.Nodes {
			if n.Workflow != "" {
				nested, ok := built[n.Workflow]
				if !ok {
					return nil, fmt.Errorf("workflow: node %q references undefined nested workflow %q (must be declared earlier)", n.Name, n.Workflow)
				}
				if err := w.AddNestedNode(n.Name, nested, n.Args); err != nil {
					return nil, fmt.Errorf("workflow: %s: %w", def.Name, err)
				}
				continue
			}
			if err := w.AddOperationNode(n.Name, n.Operation, n.Args); err != nil {
				return nil, fmt.Errorf("workflow: %s: %w", def.Name, err)
			}
		}

		for _, l := range def.Links {
			srcNode, srcPort, err := splitEndpoint(l.From)
			if err != nil {
				return nil, fmt.Errorf("workflow: %s: link from %q: %w", def.Name, l.From, err)
			}
			dstNode, dstPort, err := splitEndpoint(l.To)
			if err != nil {
				return nil, fmt.Errorf("workflow: %s: link to %q: %w", def.Name, l.To, err)
			}
			w.Link(srcNode, srcPort, dstNode, dstPort)
		}

		// LoadFile has no operation registry to check node/port references
		// against; that happens again, with operations supplied, when the
		// deploy pipeline flattens this workflow.
		if err := w.Validate(nil); err != nil {
			return nil, fmt.Errorf("workflow: %s: %w", def.Name, err)
		}
		built[def.Name] = w
	}

	w, ok := built[target]
	if !ok {
		return nil, fmt.Errorf("workflow: file %s has no workflow named %q", path, target)
	}
	return w, nil
}

// splitEndpoint parses "node.port"; an empty node (".port") denotes the
// enclosing workflow's own in/out port, matching Link's SrcNode/DstNode
// == "" convention for boundary links.
func splitEndpoint(s string) (node, port string, err error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("expected \"node.port\" or \".port\", got %q", s)
}
