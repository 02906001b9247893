package usecase

import (
	"context"
	"fmt"

	chat "go-directchat/internal/pkg/chat/application/domain"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
)

// ListConversationsInput selects the conversations of one user.
type ListConversationsInput struct {
	UserID string
	Limit  int
}

// ListConversationsUseCase returns a user's conversations, most recent activity first.
type ListConversationsUseCase struct {
	Repo repository.ChatRepository
}

func NewListConversationsUseCase(repo repository.ChatRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]chat.Conversation, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", chat.ErrValidation)
	}
	convs, err := uc.Repo.ListConversationsByUser(ctx, in.UserID, clampLimit(in.Limit))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return convs, nil
}
