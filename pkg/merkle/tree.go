package merkle

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Loader is what LoadTree needs from storage.
type Loader interface {
	// Ancestry returns the path from a node back to its root (node first, root last).
	Ancestry(ctx context.Context, hash string) ([]*Node, error)

	// Children returns the nodes whose parent is hash.
	Children(ctx context.Context, hash string) ([]*Node, error)
}

// Tree is an in-memory view of every conversation that shares one root.
// Branches appear where the same prompt chain was continued differently,
// for example two sessions that opened with the same question.
type Tree struct {
	Root *TreeNode

	index map[string]*TreeNode
}

// TreeNode wraps a Node with its structural relationships.
type TreeNode struct {
	*Node

	Parent   *TreeNode   `json:"-"`
	Children []*TreeNode `json:"children"`
}

func newTree() *Tree {
	return &Tree{index: make(map[string]*TreeNode)}
}

// LoadTree loads the branch containing hash: its ancestors up to the root and
// every descendant below it. Siblings of ancestors are not loaded.
func LoadTree(ctx context.Context, loader Loader, hash string) (*Tree, error) {
	ancestry, err := loader.Ancestry(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("getting ancestry for %s: %w", hash, err)
	}
	if len(ancestry) == 0 {
		return nil, fmt.Errorf("node %s not found", hash)
	}

	t := newTree()
	for i := len(ancestry) - 1; i >= 0; i-- {
		if _, err := t.add(ancestry[i]); err != nil {
			return nil, fmt.Errorf("adding ancestor node: %w", err)
		}
	}

	if err := t.loadDescendants(ctx, loader, t.Get(hash)); err != nil {
		return nil, fmt.Errorf("loading descendants: %w", err)
	}

	return t, nil
}

// Get returns the TreeNode with the given hash, or nil if not found.
func (t *Tree) Get(hash string) *TreeNode {
	return t.index[hash]
}

// Size returns the total number of nodes in the tree.
func (t *Tree) Size() int {
	return len(t.index)
}

// Walk traverses the tree depth-first from the root, stopping when fn
// returns false.
func (t *Tree) Walk(fn func(*TreeNode) bool) {
	if t.Root == nil {
		return
	}
	walk(t.Root, fn)
}

func walk(n *TreeNode, fn func(*TreeNode) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !walk(child, fn) {
			return false
		}
	}
	return true
}

// Leaves returns the nodes without children in depth-first order.
func (t *Tree) Leaves() []*TreeNode {
	leaves := []*TreeNode{}
	t.Walk(func(n *TreeNode) bool {
		if len(n.Children) == 0 {
			leaves = append(leaves, n)
		}
		return true
	})
	return leaves
}

// Transcripts returns every root-to-leaf path, each ordered root first.
func (t *Tree) Transcripts() [][]*Node {
	leaves := t.Leaves()
	out := make([][]*Node, 0, len(leaves))

	for _, leaf := range leaves {
		var path []*Node
		for n := leaf; n != nil; n = n.Parent {
			path = append(path, n.Node)
		}
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		out = append(out, path)
	}

	return out
}

// add links node under its parent, which must already be in the tree.
// Adding a node twice is a no-op.
func (t *Tree) add(node *Node) (*TreeNode, error) {
	if node == nil {
		return nil, errors.New("cannot add nil node to tree")
	}
	if existing, ok := t.index[node.Hash]; ok {
		return existing, nil
	}

	tn := &TreeNode{Node: node, Children: []*TreeNode{}}

	if node.ParentHash == nil {
		if t.Root != nil {
			return nil, errors.New("tree already has a root node")
		}
		t.Root = tn
	} else {
		parent, ok := t.index[*node.ParentHash]
		if !ok {
			return nil, fmt.Errorf("parent node %s not found in tree", *node.ParentHash)
		}
		tn.Parent = parent
		parent.Children = append(parent.Children, tn)
	}

	t.index[node.Hash] = tn
	return tn, nil
}

func (t *Tree) loadDescendants(ctx context.Context, loader Loader, node *TreeNode) error {
	children, err := loader.Children(ctx, node.Hash)
	if err != nil {
		return fmt.Errorf("getting children of %s: %w", node.Hash, err)
	}

	sort.SliceStable(children, func(i, j int) bool {
		return children[i].CreatedAt.Before(children[j].CreatedAt)
	})

	for _, child := range children {
		if t.Get(child.Hash) != nil {
			continue
		}
		tn, err := t.add(child)
		if err != nil {
			return fmt.Errorf("adding child node %s: %w", child.Hash, err)
		}
		if err := t.loadDescendants(ctx, loader, tn); err != nil {
			return err
		}
	}

	return nil
}
