// Package inmemory provides the default, process-local storage driver.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shamba-ai/shamba/pkg/merkle"
	"github.com/shamba-ai/shamba/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding every field below
	mu sync.RWMutex

	// nodes is the in memory map of nodes where the key is the content-addressed
	// hash for the node
	nodes map[string]*merkle.Node

	// order holds hashes in insertion order
	order []string

	// children maps a parent hash to its child hashes in insertion order
	children map[string][]string
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		nodes:    make(map[string]*merkle.Node),
		children: make(map[string][]string),
	}
}

// Put stores a node. Returns true if the node was newly inserted,
// false if it already existed (no-op due to content-addressing).
func (s *Driver) Put(_ context.Context, node *merkle.Node) (bool, error) {
	if node == nil {
		return false, errors.New("cannot store nil node")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node.Hash]; ok {
		return false, nil
	}

	s.nodes[node.Hash] = node
	s.order = append(s.order, node.Hash)
	if node.ParentHash != nil {
		s.children[*node.ParentHash] = append(s.children[*node.ParentHash], node.Hash)
	}

	return true, nil
}

// Get retrieves a node by its hash.
func (s *Driver) Get(_ context.Context, hash string) (*merkle.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[hash]
	if !ok {
		return nil, storage.ErrNotFound{Hash: hash}
	}

	return node, nil
}

// Has checks if a node exists by its hash.
func (s *Driver) Has(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.nodes[hash]
	return ok, nil
}

// List returns all nodes in insertion order.
func (s *Driver) List(_ context.Context) ([]*merkle.Node, error) {
	return s.filter(func(*merkle.Node) bool { return true }), nil
}

// Roots returns all root nodes
func (s *Driver) Roots(_ context.Context) ([]*merkle.Node, error) {
	return s.filter(func(n *merkle.Node) bool { return n.ParentHash == nil }), nil
}

// Leaves returns all nodes without children.
func (s *Driver) Leaves(_ context.Context) ([]*merkle.Node, error) {
	return s.filter(func(n *merkle.Node) bool { return len(s.children[n.Hash]) == 0 }), nil
}

// Children returns the children of hash in insertion order.
func (s *Driver) Children(_ context.Context, hash string) ([]*merkle.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := s.children[hash]
	out := make([]*merkle.Node, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, s.nodes[h])
	}
	return out, nil
}

// Ancestry returns the path from a node back to its root (node first, root last).
func (s *Driver) Ancestry(ctx context.Context, hash string) ([]*merkle.Node, error) {
	var path []*merkle.Node
	current := hash

	for {
		node, err := s.Get(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("getting node %s: %w", current, err)
		}
		path = append(path, node)

		if node.ParentHash == nil {
			break
		}
		current = *node.ParentHash
	}

	return path, nil
}

// Depth returns the depth of a node (0 for roots).
func (s *Driver) Depth(ctx context.Context, hash string) (int, error) {
	path, err := s.Ancestry(ctx, hash)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

// filter returns the nodes matching keep in insertion order.
// The lock is held for the duration so keep may read s.children.
func (s *Driver) filter(keep func(*merkle.Node) bool) []*merkle.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*merkle.Node, 0, len(s.order))
	for _, h := range s.order {
		if n := s.nodes[h]; keep(n) {
			out = append(out, n)
		}
	}
	return out
}
