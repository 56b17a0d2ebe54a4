package merkle

import (
	"strings"

	"github.com/shamba-ai/shamba/pkg/llm"
)

// BucketTypeMessage is the only bucket type the recorder writes.
const BucketTypeMessage = "message"

// Bucket represents the hashable content stored in a node.
type Bucket struct {
	// Type identifies the kind of content (e.g., "message")
	Type string `json:"type"`

	// Role is "user" for prompts and "assistant" for replies
	Role string `json:"role"`

	// Content holds the message content blocks
	Content []llm.ContentBlock `json:"content"`

	// Model is the completion model, empty for mock and assistant turns
	Model string `json:"model"`

	// Provider is "openai" or "mock"
	Provider string `json:"provider"`

	// ThreadID is the provider thread the turn belongs to, if any.
	// Hashing it keeps identical prompts on different threads apart.
	ThreadID string `json:"thread_id,omitempty"`
}

// NewMessageBucket builds a message bucket from a turn's message.
func NewMessageBucket(msg llm.Message, turn llm.ConversationTurn) Bucket {
	return Bucket{
		Type:     BucketTypeMessage,
		Role:     msg.Role,
		Content:  msg.Content,
		Model:    turn.Model,
		Provider: turn.Provider,
		ThreadID: turn.ThreadID,
	}
}

// ExtractText returns the text blocks of the bucket joined with newlines.
func (b *Bucket) ExtractText() string {
	var texts []string
	for _, block := range b.Content {
		if block.Text != "" {
			texts = append(texts, block.Text)
		}
	}
	return strings.Join(texts, "\n")
}
