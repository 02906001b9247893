package client

import (
	"sync"

	chat "go-directchat/internal/pkg/chat/application/domain"
)

// ConversationStore is the ordered message list of the open conversation.
// Insertion order is display order. Messages are addressed by Message.Key().
//
// The store is passive: it does not enforce the single-pending rule.
type ConversationStore struct {
	mu       sync.RWMutex
	messages []chat.Message
	index    map[string]int // key -> position
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{index: make(map[string]int)}
}

// Append adds m at the end. It reports false when m has no key or the key
// is already present.
func (s *ConversationStore) Append(m chat.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := m.Key()
	if key == "" {
		return false
	}
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.messages)
	s.messages = append(s.messages, m)
	return true
}

// Update applies fn to the message with key and returns the result.
func (s *ConversationStore) Update(key string, fn func(*chat.Message)) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return chat.Message{}, false
	}
	fn(&s.messages[i])
	if next := s.messages[i].Key(); next != key {
		delete(s.index, key)
		s.index[next] = i
	}
	return s.messages[i], true
}

// Remove deletes the message with key, keeping the order of the rest.
func (s *ConversationStore) Remove(key string) (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return chat.Message{}, false
	}
	removed := s.messages[i]
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	s.reindexLocked()
	return removed, true
}

func (s *ConversationStore) Get(key string) (chat.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[key]
	if !ok {
		return chat.Message{}, false
	}
	return s.messages[i], true
}

// Messages returns a copy in display order.
func (s *ConversationStore) Messages() []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset replaces the content. Messages without a key or with a repeated key
// are skipped.
func (s *ConversationStore) Reset(msgs []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]chat.Message, 0, len(msgs))
	s.index = make(map[string]int, len(msgs))
	for _, m := range msgs {
		key := m.Key()
		if key == "" {
			continue
		}
		if _, dup := s.index[key]; dup {
			continue
		}
		s.index[key] = len(s.messages)
		s.messages = append(s.messages, m)
	}
}

func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *ConversationStore) CountByStatus(status chat.DeliveryStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.messages {
		if m.Status == status {
			n++
		}
	}
	return n
}

func (s *ConversationStore) reindexLocked() {
	s.index = make(map[string]int, len(s.messages))
	for i, m := range s.messages {
		s.index[m.Key()] = i
	}
}
