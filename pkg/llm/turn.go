package llm

// ThreadIDHeader carries the provider thread identifier back to chat clients
// so it can be sent with the next prompt.
const ThreadIDHeader = "X-Thread-Id"

// Turn is one entry of a chat client's conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptRequest is the body accepted by POST /api/chat.
// ThreadID is nil when the client has no provider thread yet.
type PromptRequest struct {
	Prompt   string  `json:"prompt"`
	ThreadID *string `json:"thread_id"`
}

// ConversationTurn is a completed prompt/reply pair as recorded by the proxy.
type ConversationTurn struct {
	Mode     string  `json:"mode"`
	Provider string  `json:"provider"`
	Model    string  `json:"model,omitempty"`
	ThreadID string  `json:"thread_id,omitempty"`
	Prompt   Message `json:"prompt"`
	Reply    Message `json:"reply"`
}
