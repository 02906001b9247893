package repository

import (
	"context"
	"time"

	chat "go-directchat/internal/pkg/chat/application/domain"
)

// ChatRepository defines persistence operations for two-party conversations
// and their messages. Lookups of missing rows return chat.ErrNotFound.
type ChatRepository interface {
	// CreateOrGetConversation returns the conversation of a normalized pair,
	// creating it on first use.
	CreateOrGetConversation(ctx context.Context, pair [2]string) (chat.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error)
	// ListConversationsByUser orders by most recent activity first.
	ListConversationsByUser(ctx context.Context, userID string, limit int) ([]chat.Conversation, error)
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error

	// SaveMessage stores m and returns it with the assigned id and canonical timestamp.
	SaveMessage(ctx context.Context, m chat.StoredMessage) (chat.StoredMessage, error)
	// GetMessagesByConversation returns a page ordered oldest first.
	GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.StoredMessage, error)
}
