package adapter

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/queue/port"
)

// ErrQueueStopped is returned by Enqueue after Stop.
var ErrQueueStopped = errors.New("inline queue: stopped")

// InlineQueue runs registered handlers in a goroutine at enqueue time. It
// backs background tasks when no Redis is configured. There is no retry.
type InlineQueue struct {
	mu       sync.RWMutex
	handlers map[string]port.Handler
	closed   bool
	wg       sync.WaitGroup
	once     sync.Once
	stopped  chan struct{}
	log      zerolog.Logger
}

func NewInlineQueue(log zerolog.Logger) *InlineQueue {
	return &InlineQueue{
		handlers: make(map[string]port.Handler),
		stopped:  make(chan struct{}),
		log:      log.With().Str("component", "inline_queue").Logger(),
	}
}

var (
	_ port.Client = (*InlineQueue)(nil)
	_ port.Server = (*InlineQueue)(nil)
)

func (q *InlineQueue) Register(taskType string, h port.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

func (q *InlineQueue) Enqueue(_ context.Context, t port.Task, _ ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("inline queue: task type is required")
	}
	// wg.Add happens under the read lock so it never races Stop's Wait.
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return "", ErrQueueStopped
	}
	h, ok := q.handlers[t.Type]
	if !ok {
		q.mu.RUnlock()
		return "", errors.New("inline queue: no handler for " + t.Type)
	}
	q.wg.Add(1)
	q.mu.RUnlock()

	id := uuid.NewString()
	go func() {
		defer q.wg.Done()
		// Detached from the request context, which is usually done by now.
		if err := h(context.Background(), t); err != nil {
			q.log.Error().Err(err).Str("task_type", t.Type).Str("task_id", id).Msg("task failed")
		}
	}()
	return id, nil
}

// Run blocks until ctx is canceled or Stop is called, then drains.
func (q *InlineQueue) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-q.stopped:
	}
	return q.Stop(context.Background())
}

// Stop rejects further tasks and waits for in-flight ones until ctx is done.
func (q *InlineQueue) Stop(ctx context.Context) error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.stopped)
	})

	drained := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InlineQueue) Close() error { return nil }
