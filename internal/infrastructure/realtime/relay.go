package realtime

import (
	"strings"

	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/metrics"
	chat "go-directchat/internal/pkg/chat/application/domain"
)

// Drop reasons reported by Deliver.
const (
	DropOffline = "offline"
	DropInvalid = "invalid"
	DropSelf    = "self"
)

// Relay forwards point-to-point message events to the receiver's live
// handles. Delivery is at most once and best effort: an offline receiver
// means the event is dropped, nothing is queued or retried. Persistence is
// handled independently by the sending client.
type Relay struct {
	presence *PresenceRegistry
	log      zerolog.Logger
}

// NewRelay constructs a Relay reading from presence.
func NewRelay(presence *PresenceRegistry, log zerolog.Logger) *Relay {
	return &Relay{
		presence: presence,
		log:      log.With().Str("component", "relay").Logger(),
	}
}

// Deliver forwards ev to every handle of the receiver and returns how many
// handles accepted it. Events addressed to their own sender are discarded.
func (r *Relay) Deliver(ev chat.RelayEvent) int {
	if ev.SenderID == "" || ev.ReceiverID == "" || strings.TrimSpace(ev.Body) == "" {
		r.drop(ev, DropInvalid)
		return 0
	}
	if ev.SenderID == ev.ReceiverID {
		r.drop(ev, DropSelf)
		return 0
	}

	payload, err := Encode(EventGetMessage, GetMessagePayload{
		SenderID:  ev.SenderID,
		Message:   ev.Body,
		Timestamp: toMillis(ev.ClientTimestamp),
	})
	if err != nil {
		r.log.Error().Err(err).Msg("encode relay event")
		r.drop(ev, DropInvalid)
		return 0
	}

	delivered := r.presence.SendToUser(ev.ReceiverID, payload)
	if delivered == 0 {
		r.drop(ev, DropOffline)
		return 0
	}

	metrics.RelayDelivered.Add(float64(delivered))
	r.log.Debug().
		Str("sender_id", ev.SenderID).
		Str("receiver_id", ev.ReceiverID).
		Int("handles", delivered).
		Msg("relayed")
	return delivered
}

func (r *Relay) drop(ev chat.RelayEvent, reason string) {
	metrics.RecordDropped(reason)
	r.log.Debug().
		Str("sender_id", ev.SenderID).
		Str("receiver_id", ev.ReceiverID).
		Str("reason", reason).
		Msg("relay event dropped")
}
