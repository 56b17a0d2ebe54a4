package proxy

import (
	"bytes"
	"encoding/json"

	"github.com/shamba-ai/shamba/pkg/llm"
)

// parsePromptRequest validates a POST /api/chat body. An empty thread id is
// treated as absent.
func parsePromptRequest(body []byte) (*llm.PromptRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, invalidRequest("request body must be a JSON object")
	}

	rawPrompt, ok := fields["prompt"]
	if !ok || isNull(rawPrompt) {
		return nil, invalidRequest("prompt is required")
	}

	req := &llm.PromptRequest{}
	if err := json.Unmarshal(rawPrompt, &req.Prompt); err != nil {
		return nil, invalidRequest("prompt must be a string")
	}

	if rawThread, ok := fields["thread_id"]; ok && !isNull(rawThread) {
		var threadID string
		if err := json.Unmarshal(rawThread, &threadID); err != nil {
			return nil, invalidRequest("thread_id must be a string or null")
		}
		if threadID != "" {
			req.ThreadID = &threadID
		}
	}

	return req, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
