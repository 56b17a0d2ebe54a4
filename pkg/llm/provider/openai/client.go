// Package openai is a minimal client for the two OpenAI surfaces the shamba
// proxy speaks: streaming chat completions and the threaded assistants API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a single provider call, including a full stream.
	DefaultTimeout = 5 * time.Minute

	betaHeader     = "OpenAI-Beta"
	assistantsBeta = "assistants=v2"

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 1 << 20

	// messagePageSize is how many thread messages are listed, newest first.
	messagePageSize = 20
)

// RequestOption mutates an outbound request before it is sent.
type RequestOption func(*http.Request)

// Client talks to an OpenAI compatible API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	// Header is added to every outbound request.
	Header http.Header
}

// NewClient returns a Client for baseURL. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		Header: http.Header{},
	}
}

// StreamCompletion starts a streaming chat completion. On success the caller
// owns the returned response and must close its body. Non-2xx responses are
// consumed and returned as *APIError.
func (c *Client) StreamCompletion(ctx context.Context, req ChatCompletionRequest, opts ...RequestOption) (*http.Response, error) {
	req.Stream = true

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	for _, opt := range opts {
		opt(httpReq)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending completion request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}

	return resp, nil
}

// CreateThread creates an empty thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	if err := c.doAssistants(ctx, http.MethodPost, "/threads", struct{}{}, &thread); err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}
	return &thread, nil
}

// AddMessage appends a user message to the thread.
func (c *Client) AddMessage(ctx context.Context, threadID, content string) (*ThreadMessage, error) {
	var msg ThreadMessage
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	body := createMessageRequest{Role: "user", Content: content}

	if err := c.doAssistants(ctx, http.MethodPost, path, body, &msg); err != nil {
		return nil, fmt.Errorf("adding message to thread %s: %w", threadID, err)
	}
	return &msg, nil
}

// CreateRun starts a run of assistantID against the thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	var run Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs"

	if err := c.doAssistants(ctx, http.MethodPost, path, createRunRequest{AssistantID: assistantID}, &run); err != nil {
		return nil, fmt.Errorf("creating run on thread %s: %w", threadID, err)
	}
	return &run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)

	if err := c.doAssistants(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}
	return &run, nil
}

// ListMessages returns the most recent messages of a thread, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var list messageList
	query := url.Values{}
	query.Set("order", "desc")
	query.Set("limit", fmt.Sprint(messagePageSize))
	path := "/threads/" + url.PathEscape(threadID) + "/messages?" + query.Encode()

	if err := c.doAssistants(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("listing messages of thread %s: %w", threadID, err)
	}
	return list.Data, nil
}

func (c *Client) doAssistants(ctx context.Context, method, path string, in, out any) error {
	httpReq, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	httpReq.Header.Set(betaHeader, assistantsBeta)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for key, values := range c.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	return httpReq, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    ExtractErrorMessage(resp.StatusCode, body),
	}
}
