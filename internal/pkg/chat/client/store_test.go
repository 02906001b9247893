package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "go-directchat/internal/pkg/chat/application/domain"
)

func TestConversationStoreKeepsInsertionOrder(t *testing.T) {
	s := NewConversationStore()
	require.True(t, s.Append(chat.Message{LocalID: "a", Body: "1", Status: chat.StatusConfirmed}))
	require.True(t, s.Append(chat.Message{ServerID: "b", Body: "2", Status: chat.StatusConfirmed}))
	require.True(t, s.Append(chat.Message{LocalID: "c", Body: "3", Status: chat.StatusPending}))

	assert.False(t, s.Append(chat.Message{LocalID: "a"}), "duplicate key")
	assert.False(t, s.Append(chat.Message{Body: "no key"}))

	removed, ok := s.Remove("b")
	require.True(t, ok)
	assert.Equal(t, "2", removed.Body)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Key())
	assert.Equal(t, "c", msgs[1].Key())

	got, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, "3", got.Body)
	assert.Equal(t, 1, s.CountByStatus(chat.StatusPending))
}

func TestConversationStoreUpdate(t *testing.T) {
	s := NewConversationStore()
	s.Append(chat.Message{LocalID: "a", Status: chat.StatusPending})

	updated, ok := s.Update("a", func(m *chat.Message) {
		m.Status = chat.StatusConfirmed
		m.ServerID = "srv-1"
	})
	require.True(t, ok)
	assert.Equal(t, chat.StatusConfirmed, updated.Status)
	assert.Equal(t, "a", updated.Key(), "local id keeps the key stable")

	_, ok = s.Update("missing", func(*chat.Message) {})
	assert.False(t, ok)
}

func TestConversationStoreMessagesIsACopy(t *testing.T) {
	s := NewConversationStore()
	s.Append(chat.Message{LocalID: "a", Body: "x"})

	msgs := s.Messages()
	msgs[0].Body = "mutated"

	got, _ := s.Get("a")
	assert.Equal(t, "x", got.Body)
}

func TestConversationStoreReset(t *testing.T) {
	s := NewConversationStore()
	s.Append(chat.Message{LocalID: "old"})

	s.Reset([]chat.Message{{ServerID: "1"}, {ServerID: "1"}, {}, {ServerID: "2"}})
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("old")
	assert.False(t, ok)

	s.Reset(nil)
	assert.Zero(t, s.Len())
}
