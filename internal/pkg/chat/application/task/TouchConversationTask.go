package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	qport "go-directchat/internal/infrastructure/queue/port"
	chat "go-directchat/internal/pkg/chat/application/domain"
	"go-directchat/internal/pkg/chat/application/usecase"
)

// TouchConversationTaskType is the queue task name for stamping conversation activity.
const TouchConversationTaskType = "chat:touch_conversation"

// Queue is the queue touch tasks are enqueued on. Workers must consume it.
const Queue = "chat"

// TouchConversationTaskPayload is the JSON payload transported via the queue.
type TouchConversationTaskPayload struct {
	ConversationID string    `json:"conversationId"`
	At             time.Time `json:"at"`
}

// TouchConversationScheduler enqueues touch tasks on the chat queue.
type TouchConversationScheduler struct {
	Client qport.Client
}

var _ usecase.TouchScheduler = (*TouchConversationScheduler)(nil)

func NewTouchConversationScheduler(client qport.Client) *TouchConversationScheduler {
	return &TouchConversationScheduler{Client: client}
}

func (s *TouchConversationScheduler) ScheduleTouch(ctx context.Context, conversationID string, at time.Time) error {
	payload, err := json.Marshal(TouchConversationTaskPayload{ConversationID: conversationID, At: at})
	if err != nil {
		return err
	}
	_, err = s.Client.Enqueue(ctx, qport.Task{Type: TouchConversationTaskType, Payload: payload}, qport.EnqueueOption{
		Queue:    Queue,
		MaxRetry: 5,
	})
	return err
}

// Close releases the underlying queue client.
func (s *TouchConversationScheduler) Close() error {
	return s.Client.Close()
}

// RegisterTouchConversationTask binds the task handler to the provided server.
func RegisterTouchConversationTask(srv qport.Server, uc *usecase.TouchConversationUseCase) {
	srv.Register(TouchConversationTaskType, func(ctx context.Context, t qport.Task) error {
		var p TouchConversationTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		err := uc.Execute(ctx, usecase.TouchConversationInput{ConversationID: p.ConversationID, At: p.At})
		if errors.Is(err, chat.ErrNotFound) || errors.Is(err, chat.ErrValidation) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	})
}
