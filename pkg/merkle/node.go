// Package merkle stores chat turns as content-addressed nodes. A user prompt
// node is the parent of its assistant reply, and the next prompt on the same
// provider thread hangs off that reply.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Node represents a single content-addressed node in a Merkle DAG
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous node hash.
	// This will be nil for root nodes.
	ParentHash *string `json:"parent_hash"`

	// Bucket is the hashable content for the node.
	Bucket Bucket `json:"bucket"`

	// CreatedAt is when the node was first recorded. Not hashed.
	CreatedAt time.Time `json:"created_at"`
}

// NodeMeta contains optional metadata for a node that is stored
// but does not affect the content-addressable hash.
type NodeMeta struct {
	CreatedAt time.Time
}

// NewNode creates a new node with the computed hash for the provided bucket.
func NewNode(bucket Bucket, parent *Node, metas ...NodeMeta) *Node {
	n := &Node{
		Bucket:    bucket,
		CreatedAt: time.Now().UTC(),
	}

	if parent != nil {
		parentHash := parent.Hash
		n.ParentHash = &parentHash
	}

	if len(metas) > 0 && !metas[0].CreatedAt.IsZero() {
		n.CreatedAt = metas[0].CreatedAt.UTC()
	}

	n.Hash = ComputeHash(n.ParentHash, n.Bucket)
	return n
}

// IsRoot reports whether the node starts a chain.
func (n *Node) IsRoot() bool {
	return n.ParentHash == nil
}

// ComputeHash returns the hex SHA-256 of {"parent": ..., "content": ...}.
// encoding/json emits struct fields in declaration order, so the input is
// stable across runs.
func ComputeHash(parentHash *string, bucket Bucket) string {
	parent := ""
	if parentHash != nil {
		parent = *parentHash
	}

	data, err := json.Marshal(struct {
		Parent  string `json:"parent"`
		Content Bucket `json:"content"`
	}{
		Parent:  parent,
		Content: bucket,
	})
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify reports whether the node's hash matches its content and parent.
func (n *Node) Verify() bool {
	return n.Hash == ComputeHash(n.ParentHash, n.Bucket)
}
