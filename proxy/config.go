package proxy

import (
	"fmt"
	"time"

	"github.com/shamba-ai/shamba/pkg/eventstream"
)

// runTimeoutMargin covers the provider calls around the poll loop.
const runTimeoutMargin = 30 * time.Second

// Mode selects how the proxy answers a prompt. It is chosen once at startup.
type Mode string

const (
	// ModeMock answers with a canned string and needs no credentials.
	ModeMock Mode = "mock"

	// ModeCompletion relays a streamed chat completion.
	ModeCompletion Mode = "completion"

	// ModeAssistant runs the prompt on an assistant thread and emits the reply
	// as a single chunk.
	ModeAssistant Mode = "assistant"
)

// ParseMode validates a mode name from configuration.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeMock, ModeCompletion, ModeAssistant:
		return m, nil
	case "":
		return ModeMock, nil
	default:
		return "", fmt.Errorf("unknown proxy mode %q (expected mock, completion or assistant)", s)
	}
}

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Mode selects the responder. Defaults to mock.
	Mode Mode

	// UpstreamURL is the OpenAI compatible API base (e.g., "https://api.openai.com/v1")
	UpstreamURL string

	// Model is the chat completion model.
	Model string

	// SystemPrompt is prepended to completion requests when set.
	SystemPrompt string

	// APIKey is the provider credential. Completion and assistant modes
	// fail per request with a configuration error when it is empty.
	APIKey string

	// AssistantID is the assistant that runs threaded prompts.
	AssistantID string

	// PollInterval is the wait between run status checks.
	PollInterval time.Duration

	// MaxPollAttempts bounds the number of run status checks.
	MaxPollAttempts int

	// RunTimeout bounds one assistant mode request, provider calls included.
	// Zero derives it from the poll budget plus runTimeoutMargin.
	RunTimeout time.Duration

	// Publisher receives an event per recorded turn. Optional.
	Publisher eventstream.Publisher
}
