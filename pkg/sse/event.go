// Package sse provides a small SSE (Server-Sent Events) reader for chat
// completion streams. The proxy uses it to relay an upstream stream to the
// caller event by event while inspecting each event, and the chat client uses
// it to decode the same stream on the receiving end.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the WHATWG server-sent events standard:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneData is the data payload chat completion streams send as their final
// sentinel event.
const DoneData = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// IsDone reports whether the event is the stream terminating sentinel.
func (e *Event) IsDone() bool {
	return e != nil && e.Data == DoneData
}
