package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "go-directchat/internal/pkg/chat/application/domain"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// GetMessageInput carries parameters to fetch messages of a conversation.
// A non-empty RequesterID must be a participant.
type GetMessageInput struct {
	ConversationID string
	RequesterID    string
	Limit          int
	Offset         int
}

// GetMessageUseCase fetches a history page, oldest first.
type GetMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessageUseCase(repo repository.ChatRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]chat.StoredMessage, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", chat.ErrValidation)
	}
	if in.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", chat.ErrValidation)
	}

	if in.RequesterID != "" {
		conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
		if errors.Is(err, chat.ErrNotFound) {
			return nil, chat.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !conv.HasParticipant(in.RequesterID) {
			return nil, chat.ErrNotParticipant
		}
	}

	msgs, err := uc.Repo.GetMessagesByConversation(ctx, in.ConversationID, clampLimit(in.Limit), in.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
