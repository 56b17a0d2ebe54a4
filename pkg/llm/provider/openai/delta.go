package openai

import (
	"encoding/json"

	"github.com/shamba-ai/shamba/pkg/sse"
)

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DeltaText extracts choices[0].delta.content from one completion stream
// event payload. It reports false for the done sentinel, malformed chunks,
// and chunks carrying no content (role or finish_reason only).
func DeltaText(data string) (string, bool) {
	if data == "" || data == sse.DoneData {
		return "", false
	}

	var chunk completionChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
		return "", false
	}

	return *chunk.Choices[0].Delta.Content, true
}
