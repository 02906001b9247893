package realtime

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"go-directchat/internal/infrastructure/metrics"
	chat "go-directchat/internal/pkg/chat/application/domain"
)

// SessionState is the lifecycle state of a ConnectionSession.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrSenderMismatch   = errors.New("realtime: sender does not match session user")
	ErrUnsupportedEvent = errors.New("realtime: unsupported event")
)

// Session is one realtime connection bound to one user for its lifetime.
//
// Connecting -> Active on a matching addUser; any state -> Closed on Close.
// Closed is terminal and every later call is a no-op.
type Session struct {
	mu     sync.Mutex
	state  SessionState
	userID string

	handle   Handle
	presence *PresenceRegistry
	relay    *Relay
	log      zerolog.Logger
}

// NewSession creates a session in Connecting state for an authenticated user.
func NewSession(userID string, h Handle, presence *PresenceRegistry, relay *Relay, log zerolog.Logger) *Session {
	return &Session{
		state:    StateConnecting,
		userID:   userID,
		handle:   h,
		presence: presence,
		relay:    relay,
		log: log.With().
			Str("component", "session").
			Str("user_id", userID).
			Str("handle_id", h.ID()).
			Logger(),
	}
}

// UserID returns the identity the session is bound to.
func (s *Session) UserID() string { return s.userID }

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Register handles addUser. The announced id must equal the bound identity;
// otherwise chat.ErrUnauthorized is returned and the caller must close.
// Registering again while Active re-announces presence.
func (s *Session) Register(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	if userID != s.userID {
		s.log.Warn().Str("announced_user_id", userID).Msg("addUser rejected")
		return chat.ErrUnauthorized
	}

	s.presence.Register(s.userID, s.handle)
	s.transitionLocked(StateActive)
	return nil
}

// Submit handles sendMessage. Before registration the event is dropped
// silently. It returns the number of receiver handles reached.
func (s *Session) Submit(p SendMessagePayload) (int, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateClosed:
		return 0, nil
	case StateConnecting:
		s.log.Debug().Msg("sendMessage before addUser dropped")
		return 0, nil
	}

	if p.SenderID != s.userID {
		return 0, ErrSenderMismatch
	}
	if p.ReceiverID == "" {
		return 0, chat.ErrNoReceiver
	}
	if _, err := chat.NormalizeBody(p.Message); err != nil {
		return 0, err
	}

	return s.relay.Deliver(p.RelayEvent()), nil
}

// HandleFrame decodes one inbound frame and dispatches it.
func (s *Session) HandleFrame(raw []byte) error {
	env, err := Decode(raw)
	if err != nil {
		return err
	}

	switch env.Event {
	case EventAddUser:
		var userID string
		if err := env.DecodeData(&userID); err != nil {
			return err
		}
		return s.Register(userID)
	case EventSendMessage:
		var p SendMessagePayload
		if err := env.DecodeData(&p); err != nil {
			return err
		}
		_, err := s.Submit(p)
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, env.Event)
	}
}

// Close unregisters from presence, which also stops relay fan-out to this
// handle. Disconnects and transport failures are handled the same way.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	s.presence.Unregister(s.handle)
	s.transitionLocked(StateClosed)
}

func (s *Session) transitionLocked(next SessionState) {
	if s.state == next {
		return
	}
	metrics.RecordStateTransition(s.state.String(), next.String())
	s.log.Debug().Str("from", s.state.String()).Str("to", next.String()).Msg("session state")
	s.state = next
}
