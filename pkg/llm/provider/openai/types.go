package openai

import "github.com/shamba-ai/shamba/pkg/llm"

// ChatMessage is a single message of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the body of POST /chat/completions.
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// NewCompletionRequest builds a streaming completion request for a single
// user prompt. The system prompt is omitted when empty.
func NewCompletionRequest(model, systemPrompt, prompt string) ChatCompletionRequest {
	messages := make([]ChatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, ChatMessage{Role: llm.RoleUser, Content: prompt})

	return ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
}

// Thread is a provider-owned conversation context.
type Thread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// Pending reports whether the run is still being worked on by the provider.
func (s RunStatus) Pending() bool {
	return s == RunStatusQueued || s == RunStatusInProgress
}

// RunError is the provider's explanation for a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run processes a thread against an assistant.
type Run struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      RunStatus `json:"status"`
	LastError   *RunError `json:"last_error,omitempty"`
}

// ThreadMessage is one message stored on a thread.
type ThreadMessage struct {
	ID        string  `json:"id"`
	Role      string  `json:"role"`
	Content   Content `json:"content"`
	CreatedAt int64   `json:"created_at"`
}

type messageList struct {
	Data []ThreadMessage `json:"data"`
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createRunRequest struct {
	AssistantID string `json:"assistant_id"`
}
