// Package llm provides the provider-neutral types shared by the shamba chat
// proxy, its recorder, and the chat client.
package llm

import "strings"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// ContentTypeText is the only content block type the proxy produces.
	ContentTypeText = "text"
)

// Message is a single role-tagged message made of content blocks.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one piece of content within a Message.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewTextMessage creates a single-block text message with the given role.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: ContentTypeText, Text: text},
		},
	}
}

// GetText returns the text blocks of the message joined by a single space.
// Non-text blocks are skipped.
func (m *Message) GetText() string {
	texts := make([]string, 0, len(m.Content))
	for _, block := range m.Content {
		if block.Type == ContentTypeText {
			texts = append(texts, block.Text)
		}
	}
	return strings.Join(texts, " ")
}
