package registry

import "sync"

// Tags is the worker placement-label table. A node's tag set
// is written once by its owning handler at accept time.
type Tags struct {
	mu   sync.RWMutex
	byNode map[string][]string
}

// NewTags returns an empty Tags table.
func NewTags() *Tags {
	return &Tags{byNode: make(map[string][]string)}
}

// Add attaches tags to node, replacing any previous set.
func (t *Tags) Add(node string, tags []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]string, len(tags))
	copy(cp, tags)
	t.byNode[node] = cp
}

// Remove drops node's tags, called when the node disconnects.
func (t *Tags) Remove(node string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byNode, node)
}

// Of returns the tags attached to node.
func (t *Tags) Of(node string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.byNode[node]...)
}

// With returns every node carrying tag.
func (t *Tags) With(tag string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for node, tags := range t.byNode {
		for _, candidate := range tags {
			if candidate == tag {
				out = append(out, node)
				break
			}
		}
	}
	return out
}
