package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/metrics"
	chat "go-directchat/internal/pkg/chat/application/domain"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
)

// AppendMessageInput carries the data needed to persist a new message.
type AppendMessageInput struct {
	ConversationID string
	SenderID       string
	Body           string
}

// TouchScheduler defers the last-activity update of a conversation.
type TouchScheduler interface {
	ScheduleTouch(ctx context.Context, conversationID string, at time.Time) error
}

// AppendMessageUseCase validates a message against its conversation, stores
// it and schedules the conversation's activity update.
type AppendMessageUseCase struct {
	Repo  repository.ChatRepository
	Touch TouchScheduler // nil touches the conversation inline
	Log   zerolog.Logger
	Now   func() time.Time
}

func NewAppendMessageUseCase(repo repository.ChatRepository, touch TouchScheduler, log zerolog.Logger) *AppendMessageUseCase {
	return &AppendMessageUseCase{
		Repo:  repo,
		Touch: touch,
		Log:   log.With().Str("component", "append_message").Logger(),
		Now:   time.Now,
	}
}

func (uc *AppendMessageUseCase) Execute(ctx context.Context, in AppendMessageInput) (chat.StoredMessage, error) {
	if in.ConversationID == "" || in.SenderID == "" {
		return chat.StoredMessage{}, fmt.Errorf("%w: conversation_id and sender_id are required", chat.ErrValidation)
	}

	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if errors.Is(err, chat.ErrNotFound) {
		return chat.StoredMessage{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.StoredMessage{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	agg := chat.Chat{Conversation: conv}
	msg, err := agg.PostMessage(in.SenderID, in.Body, uc.Now())
	if err != nil {
		return chat.StoredMessage{}, err
	}

	saved, err := uc.Repo.SaveMessage(ctx, msg)
	if err != nil {
		return chat.StoredMessage{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesPersisted.Inc()

	uc.touch(ctx, saved)
	return saved, nil
}

// touch is best effort; the message is already durable.
func (uc *AppendMessageUseCase) touch(ctx context.Context, m chat.StoredMessage) {
	if uc.Touch == nil {
		if err := uc.Repo.TouchConversation(ctx, m.ConversationID, m.CreatedAt); err != nil {
			uc.Log.Warn().Err(err).Str("conversation_id", m.ConversationID).Msg("touch conversation failed")
		}
		return
	}
	if err := uc.Touch.ScheduleTouch(ctx, m.ConversationID, m.CreatedAt); err != nil {
		uc.Log.Warn().Err(err).Str("conversation_id", m.ConversationID).Msg("schedule touch conversation failed")
	}
}
