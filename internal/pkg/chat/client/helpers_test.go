package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	chat "go-directchat/internal/pkg/chat/application/domain"
)

var errNetwork = errors.New("network unreachable")

type appendCall struct {
	conversationID string
	senderID       string
	body           string
}

// fakePersistence resolves each append from its script, or succeeds.
// A non-nil gate holds every call until it is closed.
type fakePersistence struct {
	mu     sync.Mutex
	calls  []appendCall
	script []error
	gate   chan struct{}
	seq    int
	at     time.Time
}

func (p *fakePersistence) AppendMessage(ctx context.Context, conversationID, senderID, body string) (chat.StoredMessage, error) {
	p.mu.Lock()
	p.calls = append(p.calls, appendCall{conversationID, senderID, body})
	var err error
	if len(p.script) > 0 {
		err, p.script = p.script[0], p.script[1:]
	}
	p.seq++
	id := fmt.Sprintf("srv-%d", p.seq)
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return chat.StoredMessage{}, ctx.Err()
		}
	}
	if err != nil {
		return chat.StoredMessage{}, err
	}
	at := p.at
	if at.IsZero() {
		at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return chat.StoredMessage{ID: id, ConversationID: conversationID, SenderID: senderID, Body: body, CreatedAt: at}, nil
}

func (p *fakePersistence) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []chat.RelayEvent
	err    error
}

func (e *fakeEmitter) EmitMessage(ev chat.RelayEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

func (e *fakeEmitter) emitted() []chat.RelayEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]chat.RelayEvent(nil), e.events...)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("local-%d", n)
	}
}

var testConversation = chat.Conversation{ID: "conv-ab", Participants: [2]string{"alice", "bob"}}

func newTestReconciler(self string, p *fakePersistence, e *fakeEmitter) *MessageReconciler {
	return NewMessageReconciler(self, NewConversationStore(), p, e,
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC) }),
	)
}
