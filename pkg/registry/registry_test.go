package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skitterhq/skitter/pkg/mode"
)

func TestRegistryAddAndConnected(t *testing.T) {
	r := New()
	assert.False(t, r.Connected("node-1"))

	r.Add("node-1", mode.Worker)
	assert.True(t, r.Connected("node-1"))
	assert.Contains(t, r.All(), "node-1")
}

func TestRegistryMasterAndWorkers(t *testing.T) {
	r := New()
	r.Add("master-1", mode.Master)
	r.Add("worker-1", mode.Worker)
	r.Add("worker-2", mode.Worker)

	master, ok := r.Master()
	assert.True(t, ok)
	assert.Equal(t, "master-1", master)

	assert.ElementsMatch(t, []string{"worker-1", "worker-2"}, r.Workers())
}

func TestRegistryMasterAbsent(t *testing.T) {
	r := New()
	r.Add("worker-1", mode.Worker)
	_, ok := r.Master()
	assert.False(t, ok)
}

func TestRegistryRemove(t *testing.T) {
	r := New()
	r.Add("node-1", mode.Worker)
	r.Remove("node-1")
	assert.False(t, r.Connected("node-1"))
	assert.Empty(t, r.All())
}

func TestRegistryRemoveAll(t *testing.T) {
	r := New()
	r.Add("node-1", mode.Worker)
	r.Add("node-2", mode.Master)
	r.RemoveAll()
	assert.Empty(t, r.All())
}

func TestTagsAddRemoveAndOf(t *testing.T) {
	tags := NewTags()
	tags.Add("worker-1", []string{"gpu", "fast"})
	assert.ElementsMatch(t, []string{"gpu", "fast"}, tags.Of("worker-1"))

	tags.Remove("worker-1")
	assert.Empty(t, tags.Of("worker-1"))
}

func TestTagsWith(t *testing.T) {
	tags := NewTags()
	tags.Add("worker-1", []string{"gpu"})
	tags.Add("worker-2", []string{"gpu", "fast"})
	tags.Add("worker-3", []string{"fast"})

	assert.ElementsMatch(t, []string{"worker-1", "worker-2"}, tags.With("gpu"))
	assert.ElementsMatch(t, []string{"worker-2", "worker-3"}, tags.With("fast"))
	assert.Empty(t, tags.With("missing"))
}

func TestTagsAddReplacesPreviousSet(t *testing.T) {
	tags := NewTags()
	tags.Add("worker-1", []string{"gpu"})
	tags.Add("worker-1", []string{"fast"})
	assert.Equal(t, []string{"fast"}, tags.Of("worker-1"))
}
