package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat "go-directchat/internal/pkg/chat/application/domain"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
)

// TouchConversationInput stamps a conversation's last activity.
type TouchConversationInput struct {
	ConversationID string
	At             time.Time
}

// TouchConversationUseCase moves last_message_at forward; older stamps are ignored.
type TouchConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewTouchConversationUseCase(repo repository.ChatRepository) *TouchConversationUseCase {
	return &TouchConversationUseCase{Repo: repo}
}

func (uc *TouchConversationUseCase) Execute(ctx context.Context, in TouchConversationInput) error {
	if in.ConversationID == "" || in.At.IsZero() {
		return fmt.Errorf("%w: conversation_id and timestamp are required", chat.ErrValidation)
	}
	err := uc.Repo.TouchConversation(ctx, in.ConversationID, in.At)
	if errors.Is(err, chat.ErrNotFound) {
		return chat.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
