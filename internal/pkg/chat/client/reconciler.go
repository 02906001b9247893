package client

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	chat "go-directchat/internal/pkg/chat/application/domain"
)

const defaultAppendTimeout = 10 * time.Second

// ChangeKind tells subscribers what happened to the store.
type ChangeKind int

const (
	ChangeInserted ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInserted:
		return "inserted"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	case ChangeReset:
		return "reset"
	}
	return "unknown"
}

// Change is one store mutation. Message is empty for ChangeReset.
type Change struct {
	Kind    ChangeKind
	Message chat.Message
}

// SendHandle tracks one send attempt until persistence resolves it.
type SendHandle struct {
	LocalID string

	done chan struct{}
	msg  chat.Message
	err  error
}

// Done is closed once the message is confirmed or failed.
func (h *SendHandle) Done() <-chan struct{} { return h.done }

// Result returns the resolved message and, on failure, a
// *chat.TransientDeliveryError. It blocks until Done is closed.
func (h *SendHandle) Result() (chat.Message, error) {
	<-h.done
	return h.msg, h.err
}

func (h *SendHandle) resolve(m chat.Message, err error) {
	h.msg, h.err = m, err
	close(h.done)
}

// Option configures a MessageReconciler.
type Option func(*MessageReconciler)

func WithClock(now func() time.Time) Option {
	return func(r *MessageReconciler) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *MessageReconciler) { r.newID = newID }
}

// WithAppendTimeout bounds each persistence call.
func WithAppendTimeout(d time.Duration) Option {
	return func(r *MessageReconciler) { r.appendTimeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *MessageReconciler) { r.log = log }
}

// MessageReconciler owns the lifecycle of outgoing messages
// (pending -> confirmed | failed) and merges inbound relay events into the
// store of the open conversation.
//
// At most one send per conversation is pending at any time. Sends are
// rendered optimistically: the pending message is in the store before Send
// returns, and the persistence result is applied later by key.
type MessageReconciler struct {
	self        string
	store       *ConversationStore
	persistence Persistence
	emitter     RelayEmitter

	mu       sync.Mutex
	current  *chat.Conversation
	inFlight map[string]string // conversationID -> localID of the pending send

	subMu       sync.Mutex
	subscribers map[int]func(Change)
	nextSub     int

	newID         func() string
	now           func() time.Time
	appendTimeout time.Duration
	log           zerolog.Logger
	wg            sync.WaitGroup
}

// NewMessageReconciler builds a reconciler for the local user self.
func NewMessageReconciler(self string, store *ConversationStore, persistence Persistence, emitter RelayEmitter, opts ...Option) *MessageReconciler {
	r := &MessageReconciler{
		self:          self,
		store:         store,
		persistence:   persistence,
		emitter:       emitter,
		inFlight:      make(map[string]string),
		subscribers:   make(map[int]func(Change)),
		newID:         uuid.NewString,
		now:           time.Now,
		appendTimeout: defaultAppendTimeout,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("component", "reconciler").Str("user_id", self).Logger()
	return r
}

func (r *MessageReconciler) Store() *ConversationStore { return r.store }

// Open makes conv the current conversation and loads history as confirmed messages.
func (r *MessageReconciler) Open(conv chat.Conversation, history []chat.StoredMessage) error {
	if !conv.HasParticipant(r.self) {
		return chat.ErrNotParticipant
	}
	msgs := make([]chat.Message, 0, len(history))
	for _, s := range history {
		msgs = append(msgs, chat.FromStored(s))
	}

	r.mu.Lock()
	c := conv
	r.current = &c
	r.store.Reset(msgs)
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeReset})
	return nil
}

// Close clears the current conversation. In-flight sends still resolve but
// their results are dropped.
func (r *MessageReconciler) Close() {
	r.mu.Lock()
	r.current = nil
	r.store.Reset(nil)
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeReset})
}

// Current returns the open conversation.
func (r *MessageReconciler) Current() (chat.Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return chat.Conversation{}, false
	}
	return *r.current, true
}

// Send starts a send of body in the open conversation. Validation failures
// and a pending send leave the store untouched.
func (r *MessageReconciler) Send(body string) (*SendHandle, error) {
	text, err := chat.NormalizeBody(body)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	msg, peer, err := r.beginLocked(text)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return r.launch(msg, peer), nil
}

// Retry removes a failed message and sends its body again under a new local id.
func (r *MessageReconciler) Retry(key string) (*SendHandle, error) {
	r.mu.Lock()
	failed, ok := r.store.Get(key)
	if !ok {
		r.mu.Unlock()
		return nil, chat.ErrNotFound
	}
	if failed.Status != chat.StatusFailed {
		r.mu.Unlock()
		return nil, chat.ErrNotRetriable
	}
	if _, busy := r.inFlight[failed.ConversationID]; busy {
		r.mu.Unlock()
		return nil, chat.ErrSendInFlight
	}
	r.store.Remove(key)
	msg, peer, err := r.beginLocked(failed.Body)
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeRemoved, Message: failed})
	if err != nil {
		return nil, err
	}
	return r.launch(msg, peer), nil
}

// beginLocked validates the send preconditions, inserts the pending message
// and marks the conversation busy.
func (r *MessageReconciler) beginLocked(text string) (chat.Message, string, error) {
	if r.current == nil {
		return chat.Message{}, "", chat.ErrNoOpenConversation
	}
	peer := r.current.Peer(r.self)
	if peer == "" {
		return chat.Message{}, "", chat.ErrNoReceiver
	}
	if _, busy := r.inFlight[r.current.ID]; busy {
		return chat.Message{}, "", chat.ErrSendInFlight
	}

	msg := chat.Message{
		LocalID:        r.newID(),
		SenderID:       r.self,
		ConversationID: r.current.ID,
		Body:           text,
		CreatedAt:      r.now().UTC(),
		Status:         chat.StatusPending,
	}
	if !r.store.Append(msg) {
		return chat.Message{}, "", errors.New("client: duplicate local id")
	}
	r.inFlight[msg.ConversationID] = msg.LocalID
	return msg, peer, nil
}

// launch notifies, emits the relay event and persists in the background.
func (r *MessageReconciler) launch(msg chat.Message, peer string) *SendHandle {
	r.notify(Change{Kind: ChangeInserted, Message: msg})

	ev := chat.RelayEvent{
		SenderID:        msg.SenderID,
		ReceiverID:      peer,
		Body:            msg.Body,
		ClientTimestamp: msg.CreatedAt,
	}
	if r.emitter != nil {
		if err := r.emitter.EmitMessage(ev); err != nil {
			r.log.Warn().Err(err).Str("local_id", msg.LocalID).Msg("relay emit failed")
		}
	}

	h := &SendHandle{LocalID: msg.LocalID, done: make(chan struct{})}
	r.wg.Add(1)
	go r.persist(h, msg)
	return h
}

func (r *MessageReconciler) persist(h *SendHandle, msg chat.Message) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.appendTimeout)
	saved, err := r.persistence.AppendMessage(ctx, msg.ConversationID, msg.SenderID, msg.Body)
	cancel()
	if err == nil && saved.ID == "" {
		err = errors.New("persistence returned no id")
	}
	if err != nil && !errors.Is(err, chat.ErrTransientDelivery) {
		err = &chat.TransientDeliveryError{Op: "append message", Err: err}
	}

	r.mu.Lock()
	if r.inFlight[msg.ConversationID] == msg.LocalID {
		delete(r.inFlight, msg.ConversationID)
	}
	updated, applied := r.store.Update(msg.LocalID, func(m *chat.Message) {
		if err != nil {
			m.Status = chat.StatusFailed
			m.ServerID = ""
			return
		}
		m.Status = chat.StatusConfirmed
		m.ServerID = saved.ID
		if !saved.CreatedAt.IsZero() {
			m.CreatedAt = saved.CreatedAt
		}
	})
	r.mu.Unlock()

	if !applied {
		// conversation was closed or the entry removed meanwhile
		updated = msg
		if err != nil {
			updated.Status = chat.StatusFailed
		} else {
			updated.Status = chat.StatusConfirmed
			updated.ServerID = saved.ID
			if !saved.CreatedAt.IsZero() {
				updated.CreatedAt = saved.CreatedAt
			}
		}
		r.log.Debug().Str("local_id", msg.LocalID).Msg("late persistence result dropped")
	} else {
		r.notify(Change{Kind: ChangeUpdated, Message: updated})
	}

	if err != nil {
		r.log.Warn().Err(err).Str("local_id", msg.LocalID).Msg("message failed")
	}
	h.resolve(updated, err)
}

// HandleInbound merges a relayed message. Events from self, from anyone but
// the open conversation's peer, or while nothing is open are ignored.
//
// Relayed messages are inserted as confirmed under a generated LocalID with
// an empty ServerID: the relay carries no server id, only the sender's
// persistence call does. Callers must key them by Key(), not ServerID; a
// history reload replaces them with server-identified copies.
func (r *MessageReconciler) HandleInbound(ev chat.RelayEvent) {
	if ev.SenderID == "" || ev.SenderID == r.self {
		return
	}
	if ev.ReceiverID != "" && ev.ReceiverID != r.self {
		return
	}
	text, err := chat.NormalizeBody(ev.Body)
	if err != nil {
		return
	}

	r.mu.Lock()
	if r.current == nil || r.current.Peer(r.self) != ev.SenderID {
		r.mu.Unlock()
		return
	}
	createdAt := ev.ClientTimestamp
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	msg := chat.Message{
		LocalID:        r.newID(),
		SenderID:       ev.SenderID,
		ConversationID: r.current.ID,
		Body:           text,
		CreatedAt:      createdAt.UTC(),
		Status:         chat.StatusConfirmed,
	}
	ok := r.store.Append(msg)
	r.mu.Unlock()

	if ok {
		r.notify(Change{Kind: ChangeInserted, Message: msg})
	}
}

// Subscribe registers fn for store changes and returns a function that
// removes it. Callbacks run in subscription order on the goroutine that made
// the change, which is a persistence goroutine for confirmations and
// failures. They may call Send, Retry or Subscribe but must not block.
func (r *MessageReconciler) Subscribe(fn func(Change)) func() {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = fn
	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.subscribers, id)
	}
}

// Wait blocks until every in-flight persistence call has resolved.
func (r *MessageReconciler) Wait() {
	r.wg.Wait()
}

// notify calls subscribers outside subMu so a callback may Send or Retry.
func (r *MessageReconciler) notify(c Change) {
	r.subMu.Lock()
	ids := make([]int, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subscribers[id])
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
