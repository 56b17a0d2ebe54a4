// Package assistant drives the threaded assistant flow: append a prompt to a
// provider thread, run the configured assistant against it, poll the run to
// completion and extract the newest assistant reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/llm/provider/openai"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollAttempts = 120
)

// Backend is the subset of the provider API the flow needs.
// *openai.Client satisfies it.
type Backend interface {
	CreateThread(ctx context.Context) (*openai.Thread, error)
	AddMessage(ctx context.Context, threadID, content string) (*openai.ThreadMessage, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (*openai.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*openai.Run, error)
	ListMessages(ctx context.Context, threadID string) ([]openai.ThreadMessage, error)
}

// State is a step of the flow.
type State string

const (
	StateCreated             State = "created"
	StateUserMessageAppended State = "user_message_appended"
	StateRunStarted          State = "run_started"
	StatePolling             State = "polling"
	StateCompleted           State = "completed"
	StateMessageFetched      State = "message_fetched"
	StateEmitted             State = "emitted"
)

// Config configures a Flow.
type Config struct {
	AssistantID string

	// PollInterval is the fixed delay between run status checks.
	PollInterval time.Duration

	// MaxPollAttempts bounds the number of status checks after the run is
	// created.
	MaxPollAttempts int

	Logger *zap.Logger

	// Observe, when set, is called on every state transition.
	Observe func(State)
}

// Result is the outcome of one successful flow.
type Result struct {
	ThreadID string
	RunID    string
	Text     string
}

// Flow runs prompts through a provider assistant.
type Flow struct {
	backend Backend
	config  Config
	logger  *zap.Logger
}

// New returns a Flow, filling zero config values with defaults.
func New(backend Backend, config Config) *Flow {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.MaxPollAttempts <= 0 {
		config.MaxPollAttempts = DefaultMaxPollAttempts
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Flow{
		backend: backend,
		config:  config,
		logger:  logger,
	}
}

// PollBudget is the longest the flow waits between status checks in total.
func (f *Flow) PollBudget() time.Duration {
	return f.config.PollInterval * time.Duration(f.config.MaxPollAttempts)
}

// Run sends prompt on threadID, creating a thread when threadID is empty, and
// returns the newest assistant reply once the run completes.
func (f *Flow) Run(ctx context.Context, threadID, prompt string) (*Result, error) {
	f.observe(StateCreated)

	if threadID == "" {
		thread, err := f.backend.CreateThread(ctx)
		if err != nil {
			return nil, err
		}
		threadID = thread.ID
		f.logger.Debug("created thread", zap.String("thread_id", threadID))
	}

	if _, err := f.backend.AddMessage(ctx, threadID, prompt); err != nil {
		return nil, err
	}
	f.observe(StateUserMessageAppended)

	run, err := f.backend.CreateRun(ctx, threadID, f.config.AssistantID)
	if err != nil {
		return nil, err
	}
	f.observe(StateRunStarted)

	f.logger.Debug("started run",
		zap.String("thread_id", threadID),
		zap.String("run_id", run.ID),
	)

	if err := f.poll(ctx, threadID, run); err != nil {
		return nil, err
	}
	f.observe(StateCompleted)

	messages, err := f.backend.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	reply, ok := newestAssistantMessage(messages)
	if !ok {
		return nil, fmt.Errorf("%w on thread %s", ErrNoAssistantMessage, threadID)
	}
	f.observe(StateMessageFetched)

	result := &Result{
		ThreadID: threadID,
		RunID:    run.ID,
		Text:     reply.Content.Text(),
	}
	f.observe(StateEmitted)

	return result, nil
}

// poll checks the run until it completes, fails, or the attempt budget or
// context runs out.
func (f *Flow) poll(ctx context.Context, threadID string, run *openai.Run) error {
	runID := run.ID

	for attempt := 0; ; attempt++ {
		switch {
		case run.Status == openai.RunStatusCompleted:
			return nil
		case run.Status.Pending():
		default:
			return newUnhandledRunStatusError(run)
		}

		if attempt >= f.config.MaxPollAttempts {
			return fmt.Errorf("%w: run %s still %s after %d polls", ErrPollTimeout, runID, run.Status, attempt)
		}

		f.observe(StatePolling)
		if err := f.wait(ctx); err != nil {
			return err
		}

		next, err := f.backend.GetRun(ctx, threadID, runID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: %w", ErrPollTimeout, err)
			}
			return err
		}
		run = next

		f.logger.Debug("polled run",
			zap.String("run_id", runID),
			zap.String("status", string(run.Status)),
			zap.Int("attempt", attempt+1),
		)
	}
}

func (f *Flow) wait(ctx context.Context) error {
	timer := time.NewTimer(f.config.PollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrPollTimeout, ctx.Err())
		}
		return ctx.Err()
	}
}

func (f *Flow) observe(s State) {
	if f.config.Observe != nil {
		f.config.Observe(s)
	}
}

// newestAssistantMessage picks the assistant message with the greatest
// creation time. Ties go to the earlier entry, which is the newer one in a
// newest-first listing.
func newestAssistantMessage(messages []openai.ThreadMessage) (openai.ThreadMessage, bool) {
	var (
		best  openai.ThreadMessage
		found bool
	)
	for _, m := range messages {
		if m.Role != llm.RoleAssistant {
			continue
		}
		if !found || m.CreatedAt > best.CreatedAt {
			best = m
			found = true
		}
	}
	return best, found
}
