package chat

import (
	"time"
)

// Chat is the domain aggregate for a two-party conversation and its invariants.
//
// The application layer hydrates it from the repository before invoking its
// behaviors; persistence stays outside the domain.
type Chat struct {
	Conversation Conversation
}

// PostMessage applies domain rules and returns a validated message ready to persist.
//
// Validations:
// - Conversation must have two distinct participants
// - Sender must be one of them
// - Body must contain non-whitespace text (it is stored trimmed)
//
// CreatedAt is set to now in UTC; repositories may replace it with the canonical
// database timestamp.
func (c *Chat) PostMessage(senderID, body string, now time.Time) (StoredMessage, error) {
	if c.Conversation.ID == "" || c.Conversation.Participants[0] == c.Conversation.Participants[1] {
		return StoredMessage{}, ErrInvalidConversation
	}
	if !c.Conversation.HasParticipant(senderID) {
		return StoredMessage{}, ErrNotParticipant
	}

	text, err := NormalizeBody(body)
	if err != nil {
		return StoredMessage{}, err
	}

	if now.IsZero() {
		now = time.Now()
	}

	return StoredMessage{
		ConversationID: c.Conversation.ID,
		SenderID:       senderID,
		Body:           text,
		CreatedAt:      now.UTC(),
	}, nil
}
