package transport

import "sync"

// Pool lazily dials and caches Clients keyed by remote address, so
// pkg/connect and pkg/task can share one connection per peer instead of
// dialing fresh for every call.
type Pool struct {
	cookie string

	mu      sync.Mutex
	clients map[string]*Client
}

// NewPool returns an empty Pool authenticating new dials with cookie.
func NewPool(cookie string) *Pool {
	return &Pool{cookie: cookie, clients: make(map[string]*Client)}
}

// Get returns the cached Client for remote, dialing one if none exists yet.
func (p *Pool) Get(remote string) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[remote]; ok {
		return c, nil
	}
	c, err := Dial(remote, p.cookie)
	if err != nil {
		return nil, err
	}
	p.clients[remote] = c
	return c, nil
}

// Drop closes and evicts the cached Client for remote, if any. Called when
// a remote is found dead so a later reconnect attempt dials fresh.
func (p *Pool) Drop(remote string) {
	p.mu.Lock()
	c, ok := p.clients[remote]
	delete(p.clients, remote)
	p.mu.Unlock()
	if ok {
		c.Close()
	}
}

// CloseAll tears down every cached connection.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for remote, c := range p.clients {
		c.Close()
		delete(p.clients, remote)
	}
}
