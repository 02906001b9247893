package chat

import "time"

// RelayEvent is the transient point-to-point payload forwarded by the relay.
// It is never persisted.
type RelayEvent struct {
	SenderID        string
	ReceiverID      string
	Body            string
	ClientTimestamp time.Time
}
