package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/queue/port"
)

// AsynqClient implements port.Client on top of asynq and Redis.
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient constructs a client for redisURL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := redisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

var _ port.Client = (*AsynqClient)(nil)

func (a *AsynqClient) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), asynqOptions(opts)...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// asynqOptions maps the first option only; callers pass one consolidated value.
func asynqOptions(opts []port.EnqueueOption) []asynq.Option {
	if len(opts) == 0 {
		return nil
	}
	op := opts[0]
	var out []asynq.Option
	if op.ProcessIn > 0 {
		out = append(out, asynq.ProcessIn(op.ProcessIn))
	}
	if op.Queue != "" {
		out = append(out, asynq.Queue(op.Queue))
	}
	if op.MaxRetry > 0 {
		out = append(out, asynq.MaxRetry(op.MaxRetry))
	}
	if op.UniqueTTL > 0 {
		out = append(out, asynq.Unique(op.UniqueTTL))
	}
	if !op.Deadline.IsZero() {
		out = append(out, asynq.Deadline(op.Deadline))
	}
	return out
}

// AsynqServer implements port.Server on top of asynq.
type AsynqServer struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	once    sync.Once
	stopped chan struct{}
}

// NewAsynqServer builds a worker server. queues is a weight list like
// "critical=6,default=3,low=1"; an empty or invalid list consumes the
// default queue. Every queue in required is consumed even when the list
// leaves it out, so tasks enqueued there are never stranded.
func NewAsynqServer(redisURL string, concurrency int, queues string, log zerolog.Logger, required ...string) (*AsynqServer, error) {
	opt, err := redisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	weights := queueWeights(queues, required)

	log = log.With().Str("component", "asynq").Logger()
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      weights,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task_type", task.Type()).Msg("task failed")
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux(), stopped: make(chan struct{})}, nil
}

var _ port.Server = (*AsynqServer)(nil)

func (s *AsynqServer) Register(taskType string, h port.Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, port.Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts the server and blocks until ctx is canceled.
// Run processes tasks until ctx is canceled or Stop is called.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.stopped:
	}
	s.shutdown()
	// Stop may have run before Start; Shutdown is a no-op once closed.
	s.server.Shutdown()
	return nil
}

// Stop shuts the server down, waiting for active tasks up to asynq's own
// ShutdownTimeout; its Shutdown takes no context. Safe to call twice.
func (s *AsynqServer) Stop(context.Context) error {
	s.shutdown()
	return nil
}

func (s *AsynqServer) shutdown() {
	s.once.Do(func() {
		close(s.stopped)
		s.server.Shutdown()
	})
}

func redisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("asynq: empty redis url")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return opt, nil
}

// queueWeights parses spec and adds each missing required queue with weight 1.
func queueWeights(spec string, required []string) map[string]int {
	weights := parseQueueWeights(spec)
	if len(weights) == 0 {
		weights["default"] = 1
	}
	for _, q := range required {
		if q = strings.TrimSpace(q); q == "" {
			continue
		}
		if _, ok := weights[q]; !ok {
			weights[q] = 1
		}
	}
	return weights
}

// parseQueueWeights parses strings like "critical=6,default=3,low=1".
func parseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}
