package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skitterhq/skitter/pkg/registry"
	"github.com/skitterhq/skitter/pkg/transport"
)

func TestOnManyWithNoRemotesReturnsEmpty(t *testing.T) {
	e := New(transport.NewPool("cookie"), registry.New())
	results := e.OnMany(context.Background(), nil, "proc", nil, nil)
	assert.Empty(t, results)
}

func TestOnAllWorkersWithEmptyRegistryReturnsEmpty(t *testing.T) {
	reg := registry.New()
	e := New(transport.NewPool("cookie"), reg)
	results := e.OnAllWorkers(context.Background(), "proc", nil)
	assert.Empty(t, results)
}
