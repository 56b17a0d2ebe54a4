package assistant

import (
	"errors"
	"fmt"

	"github.com/shamba-ai/shamba/pkg/llm/provider/openai"
)

var (
	// ErrPollTimeout is returned when a run is still pending after the
	// attempt budget or the request deadline is spent.
	ErrPollTimeout = errors.New("assistant run polling timed out")

	// ErrNoAssistantMessage is returned when a completed run left no
	// assistant message on the thread.
	ErrNoAssistantMessage = errors.New("no assistant message")
)

// UnhandledRunStatusError reports a run that ended in a status other than
// completed, or a status the flow does not know.
type UnhandledRunStatusError struct {
	RunID  string
	Status openai.RunStatus
	Reason string
}

func newUnhandledRunStatusError(run *openai.Run) *UnhandledRunStatusError {
	e := &UnhandledRunStatusError{RunID: run.ID, Status: run.Status}
	if run.LastError != nil {
		e.Reason = run.LastError.Message
	}
	return e
}

func (e *UnhandledRunStatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("run %s ended with status %q: %s", e.RunID, e.Status, e.Reason)
	}
	return fmt.Sprintf("run %s ended with status %q", e.RunID, e.Status)
}
