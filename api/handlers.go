package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/merkle"
	"github.com/shamba-ai/shamba/pkg/storage"
)

// HistoryResponse contains the conversation history for a given node.
type HistoryResponse struct {
	// Messages in chronological order (oldest first, up to and including the requested node)
	Messages []HistoryMessage `json:"messages"`
	// HeadHash is the hash of the node that was requested
	HeadHash string `json:"head_hash"`
	// Depth is the number of messages in the history
	Depth int `json:"depth"`
}

// HistoryMessage is one recorded message in a history.
type HistoryMessage struct {
	Hash       string             `json:"hash"`
	ParentHash *string            `json:"parent_hash,omitempty"`
	Role       string             `json:"role"`
	Content    []llm.ContentBlock `json:"content"`
	Model      string             `json:"model,omitempty"`
	Provider   string             `json:"provider,omitempty"`
	ThreadID   string             `json:"thread_id,omitempty"`
}

// StatsResponse summarizes the store.
type StatsResponse struct {
	TotalNodes int `json:"total_nodes"`
	RootCount  int `json:"root_count"`
	LeafCount  int `json:"leaf_count"`
}

// ListHistoriesResponse holds one history per leaf.
type ListHistoriesResponse struct {
	Count     int               `json:"count"`
	Histories []HistoryResponse `json:"histories"`
}

// TreeResponse is the branch around a node plus its flattened transcripts.
type TreeResponse struct {
	Root        *merkle.TreeNode `json:"root"`
	Size        int              `json:"size"`
	Transcripts [][]string       `json:"transcripts"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	nodes, err := s.driver.List(ctx)
	if err != nil {
		return err
	}
	roots, err := s.driver.Roots(ctx)
	if err != nil {
		return err
	}
	leaves, err := s.driver.Leaves(ctx)
	if err != nil {
		return err
	}

	return c.JSON(StatsResponse{
		TotalNodes: len(nodes),
		RootCount:  len(roots),
		LeafCount:  len(leaves),
	})
}

func (s *Server) handleGetNode(c *fiber.Ctx) error {
	node, err := s.driver.Get(c.UserContext(), c.Params("hash"))
	if err != nil {
		return err
	}
	return c.JSON(node)
}

// handleListHistories returns every conversation, one per leaf node.
func (s *Server) handleListHistories(c *fiber.Ctx) error {
	ctx := c.UserContext()

	leaves, err := s.driver.Leaves(ctx)
	if err != nil {
		return err
	}

	histories := make([]HistoryResponse, 0, len(leaves))
	for _, leaf := range leaves {
		history, err := s.buildHistory(ctx, leaf.Hash)
		if err != nil {
			s.logger.Warn("failed to build history for leaf",
				zap.String("hash", leaf.Hash),
				zap.Error(err),
			)
			continue
		}
		histories = append(histories, *history)
	}

	return c.JSON(ListHistoriesResponse{
		Count:     len(histories),
		Histories: histories,
	})
}

func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	history, err := s.buildHistory(c.UserContext(), c.Params("hash"))
	if err != nil {
		return err
	}
	return c.JSON(history)
}

// handleGetThread returns the history ending at the most recent node recorded
// on a provider thread.
func (s *Server) handleGetThread(c *fiber.Ctx) error {
	ctx := c.UserContext()
	threadID := c.Params("id")

	nodes, err := s.driver.List(ctx)
	if err != nil {
		return err
	}

	var head *merkle.Node
	for _, n := range nodes {
		if n.Bucket.ThreadID != threadID {
			continue
		}
		if head == nil || !n.CreatedAt.Before(head.CreatedAt) {
			head = n
		}
	}
	if head == nil {
		return fiber.NewError(fiber.StatusNotFound, "thread not found")
	}

	history, err := s.buildHistory(ctx, head.Hash)
	if err != nil {
		return err
	}
	return c.JSON(history)
}

func (s *Server) handleGetTree(c *fiber.Ctx) error {
	tree, err := merkle.LoadTree(c.UserContext(), s.driver, c.Params("hash"))
	if err != nil {
		return err
	}

	transcripts := [][]string{}
	for _, path := range tree.Transcripts() {
		hashes := make([]string, len(path))
		for i, n := range path {
			hashes[i] = n.Hash
		}
		transcripts = append(transcripts, hashes)
	}

	return c.JSON(TreeResponse{
		Root:        tree.Root,
		Size:        tree.Size(),
		Transcripts: transcripts,
	})
}

// buildHistory constructs a HistoryResponse for the given node hash.
func (s *Server) buildHistory(ctx context.Context, hash string) (*HistoryResponse, error) {
	ancestry, err := s.driver.Ancestry(ctx, hash)
	if err != nil {
		return nil, err
	}
	if len(ancestry) == 0 {
		return nil, storage.ErrNotFound{Hash: hash}
	}

	messages := make([]HistoryMessage, len(ancestry))
	for i, node := range ancestry {
		messages[len(ancestry)-1-i] = HistoryMessage{
			Hash:       node.Hash,
			ParentHash: node.ParentHash,
			Role:       node.Bucket.Role,
			Content:    node.Bucket.Content,
			Model:      node.Bucket.Model,
			Provider:   node.Bucket.Provider,
			ThreadID:   node.Bucket.ThreadID,
		}
	}

	return &HistoryResponse{
		Messages: messages,
		HeadHash: hash,
		Depth:    len(messages),
	}, nil
}
