package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/assistant"
	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/llm/provider/openai"
)

// ErrorKind classifies a failed chat request.
type ErrorKind string

const (
	InvalidRequest     ErrorKind = "invalid_request"
	ConfigurationError ErrorKind = "configuration_error"
	UpstreamError      ErrorKind = "upstream_error"
	StreamError        ErrorKind = "stream_error"
	PollTimeout        ErrorKind = "poll_timeout"
	UnhandledRunStatus ErrorKind = "unhandled_run_status"
	InternalError      ErrorKind = "internal_error"
)

// internalErrorMessage is the only message clients see for internal errors.
const internalErrorMessage = "internal server error"

// Error is a chat request failure carrying the status and message returned to
// the client.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidRequest(format string, args ...any) *Error {
	return &Error{Kind: InvalidRequest, Status: fiber.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func configurationError(message string) *Error {
	return &Error{Kind: ConfigurationError, Status: fiber.StatusInternalServerError, Message: message}
}

func streamError(err error) *Error {
	return &Error{
		Kind:    StreamError,
		Status:  fiber.StatusInternalServerError,
		Message: "failed to read upstream stream",
		Err:     err,
	}
}

// upstreamError keeps the upstream status when it is an error status.
func upstreamError(status int, message string, err error) *Error {
	if status < 400 {
		status = fiber.StatusInternalServerError
	}
	return &Error{Kind: UpstreamError, Status: status, Message: message, Err: err}
}

// classify maps any handler error onto an *Error.
func classify(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return upstreamError(apiErr.StatusCode, apiErr.Message, err)
	}

	var runErr *assistant.UnhandledRunStatusError
	if errors.As(err, &runErr) {
		return &Error{Kind: UnhandledRunStatus, Status: fiber.StatusBadGateway, Message: runErr.Error(), Err: err}
	}

	if errors.Is(err, assistant.ErrPollTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: PollTimeout, Status: fiber.StatusGatewayTimeout, Message: "assistant run did not complete in time", Err: err}
	}

	if errors.Is(err, assistant.ErrNoAssistantMessage) {
		return upstreamError(fiber.StatusBadGateway, "assistant returned no reply", err)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		kind := InternalError
		if fiberErr.Code < 500 {
			kind = InvalidRequest
		}
		return &Error{Kind: kind, Status: fiberErr.Code, Message: fiberErr.Message, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return upstreamError(fiber.StatusBadGateway, "upstream request failed", err)
	}

	return &Error{Kind: InternalError, Status: fiber.StatusInternalServerError, Message: internalErrorMessage, Err: err}
}

// errorHandler converts every error returned by a route into the JSON error
// body. Internal details are logged, never returned.
func (p *Proxy) errorHandler(c *fiber.Ctx, err error) error {
	perr := classify(err)
	countError(perr.Kind)

	fields := []zap.Field{
		zap.String("kind", string(perr.Kind)),
		zap.Int("status", perr.Status),
		zap.String("path", c.Path()),
		zap.Any("request_id", c.Locals(requestIDKey)),
		zap.Error(err),
	}
	if perr.Status >= 500 {
		p.logger.Error("chat request failed", fields...)
	} else {
		p.logger.Warn("chat request rejected", fields...)
	}

	return c.Status(perr.Status).JSON(llm.ErrorResponse{Error: perr.Message})
}
