package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	chat "go-directchat/internal/pkg/chat/application/domain"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
)

// MemoryChatRepository keeps conversations and messages in process memory.
// It is used when no database is configured and in tests.
type MemoryChatRepository struct {
	mu            sync.RWMutex
	conversations map[string]*chat.Conversation // id -> conversation
	pairs         map[[2]string]string          // normalized pair -> id
	messages      map[string][]chat.StoredMessage
	now           func() time.Time
}

var _ repository.ChatRepository = (*MemoryChatRepository)(nil)

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		conversations: make(map[string]*chat.Conversation),
		pairs:         make(map[[2]string]string),
		messages:      make(map[string][]chat.StoredMessage),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryChatRepository) CreateOrGetConversation(_ context.Context, pair [2]string) (chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.pairs[pair]; ok {
		return *r.conversations[id], nil
	}
	c := &chat.Conversation{
		ID:           uuid.NewString(),
		Participants: pair,
		CreatedAt:    r.now(),
	}
	r.conversations[c.ID] = c
	r.pairs[pair] = c.ID
	return *c, nil
}

func (r *MemoryChatRepository) GetConversation(_ context.Context, conversationID string) (chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return *c, nil
}

func (r *MemoryChatRepository) ListConversationsByUser(_ context.Context, userID string, limit int) ([]chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var convs []chat.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			convs = append(convs, *c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return activity(convs[i]).After(activity(convs[j]))
	})
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

func (r *MemoryChatRepository) TouchConversation(_ context.Context, conversationID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return chat.ErrNotFound
	}
	if c.LastMessageAt == nil || at.After(*c.LastMessageAt) {
		ts := at
		c.LastMessageAt = &ts
	}
	return nil
}

func (r *MemoryChatRepository) SaveMessage(_ context.Context, m chat.StoredMessage) (chat.StoredMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[m.ConversationID]; !ok {
		return chat.StoredMessage{}, chat.ErrNotFound
	}
	m.ID = uuid.NewString()
	m.CreatedAt = r.now()
	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], m)
	return m, nil
}

func (r *MemoryChatRepository) GetMessagesByConversation(_ context.Context, conversationID string, limit int, offset int) ([]chat.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	msgs := r.messages[conversationID]
	if offset >= len(msgs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(msgs) {
		end = len(msgs)
	}
	out := make([]chat.StoredMessage, end-offset)
	copy(out, msgs[offset:end])
	return out, nil
}

func activity(c chat.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}
