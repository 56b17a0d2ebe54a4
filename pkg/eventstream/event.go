// Package eventstream defines the event emitted after the proxy records a
// chat turn, and the Publisher interface transports implement.
package eventstream

import (
	"time"

	"github.com/shamba-ai/shamba/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnPersisted is emitted after a chat turn is persisted.
	EventTypeTurnPersisted = "shamba.turn.persisted"
)

// TurnPersistedEvent is a transport-neutral event payload for a persisted turn.
type TurnPersistedEvent struct {
	SchemaVersion int                  `json:"schema_version"`
	EventType     string               `json:"event_type"`
	EventID       string               `json:"event_id"`
	EmittedAt     time.Time            `json:"emitted_at"`
	Source        EventSource          `json:"source"`
	RequestMeta   TurnRequestMeta      `json:"request_meta"`
	DAG           TurnDAGMeta          `json:"dag"`
	Turn          llm.ConversationTurn `json:"turn"`
}

// EventSource identifies where the turn originated.
type EventSource struct {
	Mode     string `json:"mode"`
	Provider string `json:"provider"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	RequestID  string `json:"request_id,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Streaming  bool   `json:"streaming"`
}

// TurnDAGMeta captures the stored nodes of the turn.
type TurnDAGMeta struct {
	RootHash      string   `json:"root_hash"`
	HeadHash      string   `json:"head_hash"`
	ParentHash    *string  `json:"parent_hash,omitempty"`
	PromptHash    string   `json:"prompt_hash"`
	NewNodeHashes []string `json:"new_node_hashes,omitempty"`
}

// PartitionKey groups events of one conversation. Threaded turns use the
// provider thread id, all others the root of their chain.
func (e *TurnPersistedEvent) PartitionKey() string {
	if e.Turn.ThreadID != "" {
		return e.Turn.ThreadID
	}
	return e.DAG.RootHash
}
