package chatclient

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPrompt is returned for a prompt with no visible characters.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrSuperseded is returned by a Submit that was cancelled by a newer one.
	ErrSuperseded = errors.New("request superseded by a newer prompt")
)

// ResponseError is a non-2xx answer from the proxy.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("proxy returned status %d: %s", e.StatusCode, e.Message)
}
