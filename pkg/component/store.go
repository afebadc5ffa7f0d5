// Package component implements the component store: a
// process-wide, per-deployment table of link maps and strategy contexts,
// write-once at deploy time and read-many from the emit path.
package component

import (
	"fmt"
	"sync"

	"github.com/skitterhq/skitter/pkg/strategy"
)

// Destination is one entry in a link table: the context to deliver into
// and the destination port index on that context's operation.
type Destination struct {
	Context strategy.Context
	Port    int
}

// LinkTable maps an out-port name to its ordered destination list.
type LinkTable map[string][]Destination

type key struct {
	ref   strategy.Ref
	index strategy.ComponentIndex
}

// Store holds every installed deployment's link tables and strategy
// contexts. Safe for concurrent use: writes happen once per key during
// deploy, reads happen continuously from the emit path.
type Store struct {
	mu       sync.RWMutex
	links    map[key]LinkTable
	contexts map[key]strategy.Context
	deployed map[strategy.Ref][]strategy.ComponentIndex
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		links:    make(map[key]LinkTable),
		contexts: make(map[key]strategy.Context),
		deployed: make(map[strategy.Ref][]strategy.ComponentIndex),
	}
}

// PutContext installs the strategy context for (ref, index). Must be
// called before PutLinks; calling it twice for the same key is an error
// since deployment data is write-once.
func (s *Store) PutContext(ref strategy.Ref, index strategy.ComponentIndex, ctx strategy.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{ref, index}
	if _, exists := s.contexts[k]; exists {
		return fmt.Errorf("component: context for %s/%d already installed", ref, index)
	}
	s.contexts[k] = ctx
	s.deployed[ref] = append(s.deployed[ref], index)
	return nil
}

// PutLinks installs the resolved link table for (ref, index).
func (s *Store) PutLinks(ref strategy.Ref, index strategy.ComponentIndex, links LinkTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{ref, index}
	if _, exists := s.links[k]; exists {
		return fmt.Errorf("component: links for %s/%d already installed", ref, index)
	}
	s.links[k] = links
	return nil
}

// Context returns the strategy context for (ref, index).
func (s *Store) Context(ref strategy.Ref, index strategy.ComponentIndex) (strategy.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.contexts[key{ref, index}]
	return ctx, ok
}

// Links returns the link table for (ref, index).
func (s *Store) Links(ref strategy.Ref, index strategy.ComponentIndex) (LinkTable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[key{ref, index}]
	return l, ok
}

// HasDeployment reports whether ref has any installed component — the
// check a worker makes before processing a message that targets it
//.
func (s *Store) HasDeployment(ref strategy.Ref) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deployed[ref]
	return ok
}

// Remove destroys every entry belonging to ref, atomically from the
// perspective of readers taking the write lock.
func (s *Store) Remove(ref strategy.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, index := range s.deployed[ref] {
		delete(s.links, key{ref, index})
		delete(s.contexts, key{ref, index})
	}
	delete(s.deployed, ref)
}

// Indices returns the component indices installed for ref.
func (s *Store) Indices(ref strategy.Ref) []strategy.ComponentIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]strategy.ComponentIndex(nil), s.deployed[ref]...)
}

// DeploymentCount reports how many distinct deployments are installed.
func (s *Store) DeploymentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deployed)
}
