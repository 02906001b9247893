package client

import (
	"context"

	chat "go-directchat/internal/pkg/chat/application/domain"
)

// Persistence appends a message durably. Failures are user-retriable.
type Persistence interface {
	AppendMessage(ctx context.Context, conversationID, senderID, body string) (chat.StoredMessage, error)
}

// RelayEmitter submits a relay event on the realtime link without waiting
// for any acknowledgment.
type RelayEmitter interface {
	EmitMessage(ev chat.RelayEvent) error
}
