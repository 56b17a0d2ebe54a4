package eventstream

import "context"

// Publisher publishes turn events to an event stream backend.
// Implementations must be safe for concurrent use by the recorder workers.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnPersistedEvent) error
	Close() error
}
