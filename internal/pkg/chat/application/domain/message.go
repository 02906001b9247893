package chat

import (
	"strings"
	"time"
)

// StoredMessage is a durably persisted message as returned by the persistence layer.
type StoredMessage struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	SenderID       string    `db:"sender_id"`
	Body           string    `db:"body"`
	CreatedAt      time.Time `db:"created_at"`
}

// DeliveryStatus is the client-side lifecycle state of a message.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusConfirmed DeliveryStatus = "confirmed"
	StatusFailed    DeliveryStatus = "failed"
)

// Message is the client view of a message. LocalID and ServerID are never both empty.
type Message struct {
	LocalID        string
	ServerID       string
	SenderID       string
	ConversationID string
	Body           string
	CreatedAt      time.Time
	Status         DeliveryStatus
}

// Key identifies the message inside a ConversationStore.
func (m Message) Key() string {
	if m.LocalID != "" {
		return m.LocalID
	}
	return m.ServerID
}

// FromStored builds a confirmed client message from a persisted record.
func FromStored(s StoredMessage) Message {
	return Message{
		ServerID:       s.ID,
		SenderID:       s.SenderID,
		ConversationID: s.ConversationID,
		Body:           s.Body,
		CreatedAt:      s.CreatedAt,
		Status:         StatusConfirmed,
	}
}

// NormalizeBody trims surrounding whitespace and rejects empty text.
func NormalizeBody(body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return "", ErrEmptyMessage
	}
	return trimmed, nil
}
