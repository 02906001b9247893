package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	chat "go-directchat/internal/pkg/chat/application/domain"
)

// Event names carried in the frame envelope.
const (
	EventAddUser     = "addUser"
	EventGetUsers    = "getUsers"
	EventSendMessage = "sendMessage"
	EventGetMessage  = "getMessage"
	EventError       = "error"
)

// ErrBadFrame is returned for payloads that are not a valid envelope.
var ErrBadFrame = errors.New("realtime: malformed frame")

// Envelope is the wire frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the client→server relay submission.
type SendMessagePayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"` // unix millis
}

// GetMessagePayload is the server→client relayed message.
type GetMessagePayload struct {
	SenderID  string `json:"senderId"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorPayload reports a session-level problem without closing the session.
type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Encode marshals data into an envelope for event.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("realtime: encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Decode parses an envelope. The data field is left raw for the caller.
func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrBadFrame)
	}
	return env, nil
}

// DecodeData unmarshals the envelope data into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrBadFrame, e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadFrame, e.Event, err)
	}
	return nil
}

// RelayEvent converts the wire submission into a domain event.
func (p SendMessagePayload) RelayEvent() chat.RelayEvent {
	return chat.RelayEvent{
		SenderID:        p.SenderID,
		ReceiverID:      p.ReceiverID,
		Body:            p.Message,
		ClientTimestamp: fromMillis(p.Timestamp),
	}
}

// NewSendMessagePayload converts a domain event into the wire submission.
func NewSendMessagePayload(ev chat.RelayEvent) SendMessagePayload {
	return SendMessagePayload{
		SenderID:   ev.SenderID,
		ReceiverID: ev.ReceiverID,
		Message:    ev.Body,
		Timestamp:  toMillis(ev.ClientTimestamp),
	}
}

// RelayEvent converts a delivered message back into a domain event addressed to receiverID.
func (p GetMessagePayload) RelayEvent(receiverID string) chat.RelayEvent {
	return chat.RelayEvent{
		SenderID:        p.SenderID,
		ReceiverID:      receiverID,
		Body:            p.Message,
		ClientTimestamp: fromMillis(p.Timestamp),
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
