// Package worker provides the asynchronous turn recorder: a bounded worker
// pool that persists completed chat turns through a storage.Driver and
// announces them on an eventstream.Publisher.
//
// The pool decouples storage from the proxy's HTTP hot path so that a slow or
// failing store never affects a chat response.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shamba-ai/shamba/pkg/eventstream"
	"github.com/shamba-ai/shamba/pkg/eventstream/nop"
	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/merkle"
	"github.com/shamba-ai/shamba/pkg/storage"
	"github.com/shamba-ai/shamba/pkg/utils"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

const previewLen = 80

// Job is one completed chat turn to record.
type Job struct {
	Turn      llm.ConversationTurn
	RequestID string
	StartedAt time.Time
	Streaming bool
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting nodes.
	Driver storage.Driver

	// Publisher receives an event per stored turn. Defaults to a no-op publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	// closeMu guards closed so Enqueue never sends on a closed queue.
	closeMu sync.RWMutex
	closed  bool

	// chainMu serializes threaded turns so each one sees the previous head.
	chainMu sync.Mutex
	heads   map[string]*merkle.Node

	dropped atomic.Int64
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		heads:  make(map[string]*merkle.Node),
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		p.logger.Warn("job not queued, pool closed, job dropped",
			zap.String("mode", job.Turn.Mode),
			zap.String("request_id", job.RequestID),
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("mode", job.Turn.Mode),
			zap.String("request_id", job.RequestID),
		)
		return true
	default:
		p.dropped.Add(1)
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("mode", job.Turn.Mode),
			zap.String("request_id", job.RequestID),
		)
		return false
	}
}

// Dropped returns how many jobs were rejected.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Close is idempotent.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.closeMu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", zap.Uint("worker_id", id))
}

// processJob stores the turn and publishes its event.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	rec, err := p.storeTurn(ctx, job)
	if err != nil {
		p.logger.Error("turn storage failed",
			zap.String("mode", job.Turn.Mode),
			zap.String("request_id", job.RequestID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("turn stored",
		zap.String("head", rec.reply.Hash),
		zap.String("thread_id", job.Turn.ThreadID),
		zap.String("mode", job.Turn.Mode),
	)

	event := p.newEvent(job, rec)
	if err := p.config.Publisher.PublishTurn(ctx, event); err != nil {
		p.logger.Warn("failed to publish turn event",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
}

type record struct {
	root     string
	parent   *merkle.Node
	prompt   *merkle.Node
	reply    *merkle.Node
	newNodes []string
}

// storeTurn stores the prompt and reply nodes. Turns on a provider thread
// continue from that thread's previous reply.
func (p *Pool) storeTurn(ctx context.Context, job Job) (*record, error) {
	turn := job.Turn
	threaded := turn.ThreadID != ""

	if threaded {
		p.chainMu.Lock()
		defer p.chainMu.Unlock()
	}

	rec := &record{}
	if threaded {
		parent, err := p.threadHead(ctx, turn.ThreadID)
		if err != nil {
			return nil, err
		}
		rec.parent = parent
	}

	startedAt := job.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	rec.prompt = merkle.NewNode(merkle.NewMessageBucket(turn.Prompt, turn), rec.parent, merkle.NodeMeta{CreatedAt: startedAt})
	if err := p.put(ctx, rec, rec.prompt); err != nil {
		return nil, fmt.Errorf("storing prompt node: %w", err)
	}

	rec.reply = merkle.NewNode(merkle.NewMessageBucket(turn.Reply, turn), rec.prompt)
	if err := p.put(ctx, rec, rec.reply); err != nil {
		return nil, fmt.Errorf("storing reply node: %w", err)
	}

	p.logger.Debug("stored turn",
		zap.String("prompt_hash", rec.prompt.Hash),
		zap.String("reply_hash", rec.reply.Hash),
		zap.String("reply_preview", utils.Truncate(turn.Reply.GetText(), previewLen)),
	)

	if threaded {
		p.heads[turn.ThreadID] = rec.reply
	}

	rec.root = rec.prompt.Hash
	if rec.parent != nil {
		path, err := p.config.Driver.Ancestry(ctx, rec.parent.Hash)
		if err != nil {
			return nil, fmt.Errorf("resolving root: %w", err)
		}
		rec.root = path[len(path)-1].Hash
	}

	return rec, nil
}

func (p *Pool) put(ctx context.Context, rec *record, node *merkle.Node) error {
	isNew, err := p.config.Driver.Put(ctx, node)
	if err != nil {
		return err
	}
	if isNew {
		rec.newNodes = append(rec.newNodes, node.Hash)
	}
	return nil
}

// threadHead returns the newest reply recorded on the thread. After a restart
// the head is recovered from the store's leaves. Callers hold chainMu.
func (p *Pool) threadHead(ctx context.Context, threadID string) (*merkle.Node, error) {
	if head, ok := p.heads[threadID]; ok {
		return head, nil
	}

	leaves, err := p.config.Driver.Leaves(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovering head of thread %s: %w", threadID, err)
	}

	var head *merkle.Node
	for _, leaf := range leaves {
		if leaf.Bucket.ThreadID != threadID || leaf.Bucket.Role != llm.RoleAssistant {
			continue
		}
		if head == nil || leaf.CreatedAt.After(head.CreatedAt) {
			head = leaf
		}
	}

	if head != nil {
		p.heads[threadID] = head
	}
	return head, nil
}

func (p *Pool) newEvent(job Job, rec *record) *eventstream.TurnPersistedEvent {
	now := time.Now().UTC()

	event := &eventstream.TurnPersistedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTurnPersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		Source: eventstream.EventSource{
			Mode:     job.Turn.Mode,
			Provider: job.Turn.Provider,
		},
		RequestMeta: eventstream.TurnRequestMeta{
			RequestID: job.RequestID,
			Streaming: job.Streaming,
		},
		DAG: eventstream.TurnDAGMeta{
			RootHash:      rec.root,
			HeadHash:      rec.reply.Hash,
			PromptHash:    rec.prompt.Hash,
			NewNodeHashes: rec.newNodes,
		},
		Turn: job.Turn,
	}

	if !job.StartedAt.IsZero() {
		event.RequestMeta.DurationMs = now.Sub(job.StartedAt).Milliseconds()
	}
	if rec.parent != nil {
		parentHash := rec.parent.Hash
		event.DAG.ParentHash = &parentHash
	}

	return event
}
