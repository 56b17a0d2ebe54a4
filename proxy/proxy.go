// Package proxy provides the shamba chat proxy: it accepts one prompt on
// POST /api/chat, obtains one answer from the configured responder, streams it
// back, and hands the finished turn to the recorder.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/assistant"
	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/llm/provider/mock"
	"github.com/shamba-ai/shamba/pkg/llm/provider/openai"
	"github.com/shamba-ai/shamba/pkg/sse"
	"github.com/shamba-ai/shamba/pkg/storage"
	"github.com/shamba-ai/shamba/proxy/header"
	"github.com/shamba-ai/shamba/proxy/worker"
)

const (
	chatPath       = "/api/chat"
	providerOpenAI = "openai"
	requestIDKey   = "requestid"
	textPlain      = "text/plain; charset=utf-8"
	eventStream    = "text/event-stream"
)

// Proxy is the chat proxy server. Completed turns are enqueued on its worker
// pool for async storage and never affect the response.
type Proxy struct {
	config        Config
	driver        storage.Driver
	workerPool    *worker.Pool
	logger        *zap.Logger
	server        *fiber.App
	client        *openai.Client
	flow          *assistant.Flow
	responder     *mock.Responder
	headerHandler *header.Handler
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of conversation turns.
// Returns an error if the configured mode is not recognized.
func New(config Config, driver storage.Driver, logger *zap.Logger) (*Proxy, error) {
	mode, err := ParseMode(string(config.Mode))
	if err != nil {
		return nil, err
	}
	config.Mode = mode

	if logger == nil {
		logger = zap.NewNop()
	}

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	client := openai.NewClient(config.UpstreamURL, config.APIKey)

	p := &Proxy{
		config:        config,
		driver:        driver,
		workerPool:    wp,
		logger:        logger,
		client:        client,
		responder:     mock.NewResponder(nil),
		headerHandler: header.NewHandler(),
	}

	p.flow = assistant.New(client, assistant.Config{
		AssistantID:     config.AssistantID,
		PollInterval:    config.PollInterval,
		MaxPollAttempts: config.MaxPollAttempts,
		Logger:          logger,
		Observe: func(s assistant.State) {
			logger.Debug("assistant flow", zap.String("state", string(s)))
		},
	})

	if p.config.RunTimeout <= 0 {
		p.config.RunTimeout = p.flow.PollBudget() + runTimeoutMargin
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
		ErrorHandler:      p.errorHandler,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			logger.Error("recovered from panic",
				zap.String("path", c.Path()),
				zap.Any("panic", e),
				zap.Stack("stack"),
			)
		},
	}))
	app.Use(requestid.New(requestid.Config{
		Header:     header.RequestIDHeader,
		ContextKey: requestIDKey,
	}))
	app.Use(cors.New(cors.Config{
		AllowMethods:  "GET,POST,OPTIONS",
		ExposeHeaders: llm.ThreadIDHeader,
	}))

	// Compressing the chat route would buffer the relayed stream.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == chatPath
		},
	}))

	app.Get("/health", p.handleHealth)
	app.Post(chatPath, p.handlePrompt)

	p.server = app
	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("mode", string(p.config.Mode)),
		zap.String("upstream", p.client.BaseURL),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		zap.String("listen", listener.Addr().String()),
		zap.String("mode", string(p.config.Mode)),
		zap.String("upstream", p.client.BaseURL),
	)

	return p.server.Listener(listener)
}

// Close stops accepting requests, then waits for the worker pool to drain.
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

// Mode returns the responder mode the proxy was started with.
func (p *Proxy) Mode() Mode {
	return p.config.Mode
}

func (p *Proxy) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handlePrompt validates the prompt request and dispatches it to the
// configured mode. Every error returned here is rendered by errorHandler.
func (p *Proxy) handlePrompt(c *fiber.Ctx) error {
	startTime := time.Now()
	countRequest(p.config.Mode)

	req, err := parsePromptRequest(c.Body())
	if err != nil {
		return err
	}

	switch p.config.Mode {
	case ModeCompletion:
		return p.handleCompletion(c, req, startTime)
	case ModeAssistant:
		return p.handleAssistant(c, req, startTime)
	default:
		return p.handleMock(c, req, startTime)
	}
}

// handleMock answers with one canned reply as a single chunk.
func (p *Proxy) handleMock(c *fiber.Ctx, req *llm.PromptRequest, startTime time.Time) error {
	reply := p.responder.Reply()

	p.record(requestID(c), llm.ConversationTurn{
		Mode:     string(ModeMock),
		Provider: mock.ProviderName,
		Prompt:   llm.NewTextMessage(llm.RoleUser, req.Prompt),
		Reply:    llm.NewTextMessage(llm.RoleAssistant, reply),
	}, startTime, false)

	p.logRequest(c, startTime)

	c.Set(fiber.HeaderContentType, textPlain)
	return c.Status(fiber.StatusOK).SendString(reply)
}

// handleAssistant runs the prompt on an assistant thread and answers with the
// reply text as a single chunk, returning the thread id in a header.
func (p *Proxy) handleAssistant(c *fiber.Ctx, req *llm.PromptRequest, startTime time.Time) error {
	if p.config.APIKey == "" {
		return configurationError("OPENAI_API_KEY is not set")
	}
	if p.config.AssistantID == "" {
		return configurationError("OPENAI_ASSISTANT_ID is not set")
	}

	threadID := ""
	if req.ThreadID != nil {
		threadID = *req.ThreadID
	}

	// fasthttp never cancels the user context, so the run carries its own
	// deadline.
	ctx, cancel := context.WithTimeout(c.UserContext(), p.config.RunTimeout)
	defer cancel()

	result, err := p.flow.Run(ctx, threadID, req.Prompt)
	if err != nil {
		return err
	}

	p.record(requestID(c), llm.ConversationTurn{
		Mode:     string(ModeAssistant),
		Provider: providerOpenAI,
		ThreadID: result.ThreadID,
		Prompt:   llm.NewTextMessage(llm.RoleUser, req.Prompt),
		Reply:    llm.NewTextMessage(llm.RoleAssistant, result.Text),
	}, startTime, false)

	p.logRequest(c, startTime, zap.String("thread_id", result.ThreadID))

	c.Set(llm.ThreadIDHeader, result.ThreadID)
	c.Set(fiber.HeaderContentType, textPlain)
	return c.Status(fiber.StatusOK).SendString(result.Text)
}

// handleCompletion relays a streamed chat completion event by event. The first
// upstream event is read before anything is committed to the client so an
// early stream failure still produces a JSON error response.
func (p *Proxy) handleCompletion(c *fiber.Ctx, req *llm.PromptRequest, startTime time.Time) error {
	if p.config.APIKey == "" {
		return configurationError("OPENAI_API_KEY is not set")
	}

	reqID := requestID(c)
	completion := openai.NewCompletionRequest(p.config.Model, p.config.SystemPrompt, req.Prompt)

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the relay runs
	// asynchronously in a separate goroutine and needs the upstream connection
	// to remain open.
	httpResp, err := p.client.StreamCompletion(context.Background(), completion,
		p.headerHandler.UpstreamRequestOption(c, reqID))
	if err != nil {
		return err
	}

	var head bytes.Buffer
	tr := sse.NewTeeReader(httpResp.Body, &head)
	first, err := tr.Next()
	if err != nil {
		httpResp.Body.Close()
		return streamError(err)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	if httpResp.Header.Get(fiber.HeaderContentType) == "" {
		c.Set(fiber.HeaderContentType, eventStream)
	}

	turn := llm.ConversationTurn{
		Mode:     string(ModeCompletion),
		Provider: providerOpenAI,
		Model:    p.config.Model,
		Prompt:   llm.NewTextMessage(llm.RoleUser, req.Prompt),
	}

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter so that every
	// pw.Write blocks until fasthttp has flushed the chunk to the socket.
	pr, pw := io.Pipe()
	go p.relayStream(httpResp, tr, first, head.Bytes(), pw, turn, reqID, startTime)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Status(fiber.StatusOK)
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// relayStream forwards the already read head and every following event to pw
// and accumulates the delta text. A read failure after the head closes the
// pipe with the error, truncating the client stream. The turn is recorded only
// when the upstream stream ends cleanly.
func (p *Proxy) relayStream(
	httpResp *http.Response,
	tr *sse.TeeReader,
	first *sse.Event,
	head []byte,
	pw *io.PipeWriter,
	turn llm.ConversationTurn,
	reqID string,
	startTime time.Time,
) {
	// Close the upstream response body once streaming is complete.
	defer httpResp.Body.Close()

	if _, err := pw.Write(head); err != nil {
		p.logger.Warn("client went away before the first event", zap.String("request_id", reqID), zap.Error(err))
		pw.CloseWithError(err)
		return
	}
	tr.SetDestination(pw)

	var reply strings.Builder
	events := 0
	for ev := first; ev != nil; {
		events++
		if text, ok := openai.DeltaText(ev.Data); ok {
			reply.WriteString(text)
		}

		next, err := tr.Next()
		if err != nil {
			p.logger.Error("error relaying completion stream",
				zap.String("request_id", reqID),
				zap.Int("events", events),
				zap.Error(err),
			)
			pw.CloseWithError(err)
			return
		}
		ev = next
	}
	pw.Close()

	p.logger.Info("chat request",
		zap.String("request_id", reqID),
		zap.String("mode", string(ModeCompletion)),
		zap.Int("events", events),
		zap.Duration("duration", time.Since(startTime)),
	)

	turn.Reply = llm.NewTextMessage(llm.RoleAssistant, reply.String())
	p.record(reqID, turn, startTime, true)
}

// record enqueues the finished turn for async storage.
func (p *Proxy) record(reqID string, turn llm.ConversationTurn, startTime time.Time, streaming bool) {
	ok := p.workerPool.Enqueue(worker.Job{
		Turn:      turn,
		RequestID: reqID,
		StartedAt: startTime,
		Streaming: streaming,
	})
	if !ok {
		recorderDrops.Add(1)
	}
}

func (p *Proxy) logRequest(c *fiber.Ctx, startTime time.Time, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("request_id", requestID(c)),
		zap.String("mode", string(p.config.Mode)),
		zap.Duration("duration", time.Since(startTime)),
	}, fields...)
	p.logger.Info("chat request", fields...)
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
