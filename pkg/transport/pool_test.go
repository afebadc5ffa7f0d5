package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGetCachesClientPerRemote(t *testing.T) {
	p := NewPool("cookie")
	defer p.CloseAll()

	c1, err := p.Get("127.0.0.1:65000")
	require.NoError(t, err)
	c2, err := p.Get("127.0.0.1:65000")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}

func TestPoolDropEvictsClient(t *testing.T) {
	p := NewPool("cookie")
	defer p.CloseAll()

	c1, err := p.Get("127.0.0.1:65001")
	require.NoError(t, err)
	p.Drop("127.0.0.1:65001")

	c2, err := p.Get("127.0.0.1:65001")
	require.NoError(t, err)
	assert.NotSame(t, c1, c2)
}
