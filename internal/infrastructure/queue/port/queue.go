package port

import (
	"context"
	"time"
)

// Task is a background job: a stable type name and an opaque payload.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks the adapter to retry, so
// handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption is mapped best-effort onto the backend; zero values mean
// unspecified.
type EnqueueOption struct {
	Queue     string
	ProcessIn time.Duration
	MaxRetry  int
	UniqueTTL time.Duration
	Deadline  time.Time
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs workers. Run blocks until ctx is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
