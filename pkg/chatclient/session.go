// Package chatclient is the client side of POST /api/chat. A Session keeps
// the ordered conversation, threads the provider thread id from one prompt
// to the next, and allows one request in flight at a time.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/llm"
)

const (
	chatPath = "/api/chat"

	// DefaultTimeout matches the proxy's provider timeout.
	DefaultTimeout = 5 * time.Minute

	maxErrorBody = 64 << 10
)

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.httpClient = c }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is one chat conversation against a proxy.
type Session struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	turns    []llm.Turn
	threadID string
	typing   bool
	pending  strings.Builder

	// seq identifies the request that owns the slot; cancel aborts it.
	seq    uint64
	cancel context.CancelCauseFunc
}

// NewSession returns a Session that talks to the proxy at proxyTarget.
func NewSession(proxyTarget string, opts ...Option) *Session {
	s := &Session{
		endpoint:   strings.TrimSuffix(proxyTarget, "/") + chatPath,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Turns returns a copy of the conversation so far.
func (s *Session) Turns() []llm.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Turn(nil), s.turns...)
}

// ThreadID returns the last thread id returned by the proxy.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Typing reports whether a reply is being received.
func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Pending returns the partial reply of the request in flight.
func (s *Session) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.String()
}

// Submit sends prompt and waits for the full reply, calling onDelta with each
// decoded piece as it arrives. The user turn is appended immediately. The
// assistant turn is appended once the reply has been received in full.
//
// A Submit issued while another is in flight cancels the earlier one, which
// then returns ErrSuperseded and leaves no assistant turn behind.
func (s *Session) Submit(ctx context.Context, prompt string, onDelta func(string)) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.turns = append(s.turns, llm.Turn{Role: llm.RoleUser, Content: prompt})
	s.typing = true
	s.pending.Reset()
	threadID := s.threadID
	s.mu.Unlock()

	defer s.release(seq)

	reply, newThreadID, err := s.send(reqCtx, seq, prompt, threadID, onDelta)
	if err != nil {
		if errors.Is(context.Cause(reqCtx), ErrSuperseded) {
			return "", ErrSuperseded
		}
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		return "", ErrSuperseded
	}
	s.turns = append(s.turns, llm.Turn{Role: llm.RoleAssistant, Content: reply})
	if newThreadID != "" {
		s.threadID = newThreadID
	}

	return reply, nil
}

// release frees the request slot if seq still owns it.
func (s *Session) release(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == seq {
		s.typing = false
		s.cancel = nil
		s.pending.Reset()
	}
}

func (s *Session) send(ctx context.Context, seq uint64, prompt, threadID string, onDelta func(string)) (string, string, error) {
	req := llm.PromptRequest{Prompt: prompt}
	if threadID != "" {
		req.ThreadID = &threadID
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	s.logger.Debug("sending chat request",
		zap.String("endpoint", s.endpoint),
		zap.String("thread_id", threadID),
	)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", "", fmt.Errorf("sending request to proxy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", readResponseError(resp)
	}

	var reply strings.Builder
	emit := func(delta string) bool {
		s.mu.Lock()
		if s.seq != seq {
			s.mu.Unlock()
			return false
		}
		s.pending.WriteString(delta)
		s.mu.Unlock()

		reply.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
		return true
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		err = decodeEvents(resp.Body, emit)
	} else {
		err = decodeText(resp.Body, emit)
	}
	if err != nil {
		return "", "", fmt.Errorf("reading reply: %w", err)
	}

	return reply.String(), resp.Header.Get(llm.ThreadIDHeader), nil
}

func readResponseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body llm.ErrorResponse
	message := ""
	if err := json.Unmarshal(data, &body); err == nil {
		message = body.Error
	}
	if message == "" {
		message = strings.TrimSpace(string(data))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &ResponseError{StatusCode: resp.StatusCode, Message: message}
}
