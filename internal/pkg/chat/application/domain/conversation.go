package chat

import (
	"strings"
	"time"
)

// Conversation represents a two-party thread. Participants are kept in
// lexicographic order so a pair maps to exactly one conversation.
type Conversation struct {
	ID            string     `db:"id"`
	Participants  [2]string  `db:"-"`
	CreatedAt     time.Time  `db:"created_at"`
	LastMessageAt *time.Time `db:"last_message_at"`
}

// NormalizePair orders two user ids by byte value and rejects blank or
// identical ids. Storage must compare the pair the same way.
func NormalizePair(a, b string) ([2]string, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return [2]string{}, ErrNoReceiver
	}
	if a == b {
		return [2]string{}, ErrInvalidConversation
	}
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}, nil
}

// HasParticipant tells whether userID is part of this conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.Participants[0] == userID || c.Participants[1] == userID)
}

// Peer returns the other participant, or "" when userID is not a member.
func (c Conversation) Peer(userID string) string {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return ""
}
