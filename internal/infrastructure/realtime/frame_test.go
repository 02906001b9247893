package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "go-directchat/internal/pkg/chat/application/domain"
)

func TestSendMessagePayloadCarriesMillisecondTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewSendMessagePayload(chat.RelayEvent{SenderID: "a", ReceiverID: "b", Body: "hi", ClientTimestamp: ts})

	raw, err := Encode(EventSendMessage, p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"sendMessage","data":{"senderId":"a","receiverId":"b","message":"hi","timestamp":1772366400000}}`, string(raw))

	env, err := Decode(raw)
	require.NoError(t, err)
	var back SendMessagePayload
	require.NoError(t, env.DecodeData(&back))
	assert.True(t, back.RelayEvent().ClientTimestamp.Equal(ts))
}

func TestZeroTimestampStaysZero(t *testing.T) {
	p := GetMessagePayload{SenderID: "a", Message: "hi"}
	assert.True(t, p.RelayEvent("b").ClientTimestamp.IsZero())
}

func TestDecodeRequiresEvent(t *testing.T) {
	_, err := Decode([]byte(`{"data":1}`))
	assert.ErrorIs(t, err, ErrBadFrame)
}
